// Package tool defines Knock tool descriptors and their bound, callable form.
//
// Invariants:
// - A descriptor's method is its stable identifier across every surface.
// - Inputs are schema-validated before the handler runs.
// - Knock API failures are returned as an ErrorResult value, never as a Go error.
//
// Usage:
//
//	d := tool.Descriptor{
//		Method:      "getUser",
//		Name:        "Get user",
//		Description: "Retrieve a user by id",
//		Parameters:  []tool.Parameter{{Name: "userId", Type: "string", Description: "User id", Required: true}},
//		Execute:     getUser,
//	}
//	b, _ := d.Bind(client, tool.Config{UserID: "u_1"})
//	result, _ := b.Invoke(ctx, map[string]interface{}{"userId": "u_1"})
package tool
