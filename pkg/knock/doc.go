// Package knock is a small client for the Knock management and public APIs.
//
// The management API is called with a service token. Public API calls are
// scoped to an environment and use a key obtained by exchanging the service
// token, cached per token and environment.
//
// Usage:
//
//	c, _ := knock.NewClient(os.Getenv("KNOCK_SERVICE_TOKEN"))
//	workflows, _ := c.ListWorkflows(ctx, "development")
//	pub, _ := c.Public(ctx, "development")
//	user, _ := pub.GetUser(ctx, "u_1")
package knock
