package main

import (
	"github.com/consentry/consentry/cmd"
	"github.com/consentry/consentry/internal/config"
)

func main() {
	config.LoadConfig()
	cmd.Execute()
}
