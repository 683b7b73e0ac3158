// Package client is a Go client for the SolarPro HTTP API.
//
// It covers sign-in, navigation and the settings registry, and is the
// backend the configuration editors run against.
//
//	c, err := client.New("https://erp.example.com", apiKey)
//	if _, err := c.SignIn(ctx, "admin@example.com", password); err != nil {
//		return err
//	}
//	roles, err := c.List(ctx, settings.KindRole)
//
// Non-2xx responses are returned as *APIError carrying the status code and
// the server's error message.
package client
