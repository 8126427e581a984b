// Command pagesim simulates demand-paged virtual memory with an inverted page
// table, replaying the memory references of several workloads.
package main

import "github.com/sarchlab/pagesim/pagesim/cmd"

func main() {
	cmd.Execute()
}
