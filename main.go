// Command loadstar analyzes a project portfolio snapshot: task critical
// paths, dependency levels, resource load and capacity conflicts.
package main

import "github.com/papapumpkin/loadstar/cmd"

func main() {
	cmd.Execute()
}
