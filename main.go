package main

import "github.com/buildlens/buildlens/internal/cmd"

func main() {
	cmd.Execute()
}
