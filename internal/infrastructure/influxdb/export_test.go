package influxdb

// Flush blocks until buffered points are sent, so tests can observe write
// errors without closing the client.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}
