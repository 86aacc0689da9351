// Package main provides the amadown command.
//
// amadown downloads every review listing page of one or more products and
// stores each page as an HTML file under <out>/<domain>/<id>/.
//
// Usage:
//
//	amadown [flags] ID...
//	amadown -d co.uk -m 100 B00EXAMPLE B01EXAMPLE
//
// See --help for all available options.
package main

func main() {
	Execute()
}
