package websocket

// ServeWs registers the client and runs its pumps. It returns when the peer goes away.
func ServeWs(hub *Hub, client *Client) {
	if !hub.Register(client) {
		client.shutdown()
		client.conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
