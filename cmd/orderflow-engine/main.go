// Command orderflow-engine runs the order-flow microstructure analysis
// engine: quote ingestion, periodic derivation, and the
// analyze_order_flow query surface.
package main

import "orderflow-engine/internal/cli"

func main() {
	cli.Execute()
}
