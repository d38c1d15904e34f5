// Package main is the entry point of the summitcrawler binary.
package main

import "github.com/JakeFAU/summit-index-crawler/cmd"

func main() {
	cmd.Execute()
}
