package core

// Output is an audio output configured on the server.
type Output struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Plugin  string `json:"plugin,omitempty"`
	Enabled bool   `json:"enabled"`
}
