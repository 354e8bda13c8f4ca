package version

// Version of the syncplayer binary, set at release time with
//
//	go build -ldflags="-X 'github.com/BioHazard786/SyncPlayer/internal/version.Version=v1.0.0'"
var Version = "dev"
