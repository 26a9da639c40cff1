// Package persona is the Go client for the persona HTTP API: product
// search, per-user recommendations, interest profiles and behavioral
// event publishing.
//
// Basic usage:
//
//	client := persona.New("http://localhost:8080", persona.WithAPIKey("secret"))
//	res, err := client.Search(ctx, persona.SearchParams{Query: "wireless headphones"})
package persona
