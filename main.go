package main

import "github.com/italosilva18/cte-mdfe-api-sub000/cmd"

func main() {
	cmd.Execute()
}
