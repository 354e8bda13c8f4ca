package main

import (
	"github.com/BioHazard786/SyncPlayer/cmd"
	"github.com/BioHazard786/SyncPlayer/internal/logging"
)

func main() {
	closer := logging.Init()
	defer closer.Close()
	cmd.Execute()
}
