// paygate gates access to a stored payment credential behind spending
// policy and human approval, for agents that are autonomous and not fully
// trusted.
package main

import "github.com/openclaw/paygate/internal/cli"

func main() {
	cli.Execute()
}
