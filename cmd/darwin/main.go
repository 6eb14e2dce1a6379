// Darwin serves LLM agents from versioned genomes and evolves them when a
// conversation fails review.
//
// Usage:
//
//	# Start the HTTP server
//	darwin serve --config darwin.yaml
//
//	# Talk to the active genome of a lineage
//	darwin chat --pk LINEAGE#hotel-concierge --chat-id c1 "When is check-in?"
//
//	# Review a conversation and evolve the genome if it failed
//	darwin evolve --pk LINEAGE#hotel-concierge --chat-sk 'VERSION#...#CHAT#c1'
//
//	# Inspect the lineage and its tickets
//	darwin lineage --pk LINEAGE#hotel-concierge
//	darwin tickets list --pk LINEAGE#hotel-concierge --status open
package main

import "os"

func main() {
	os.Exit(Execute())
}
