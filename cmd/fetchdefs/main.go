package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/abyss/internal/server/settings"
)

func main() {
	var (
		src  = flag.String("src", "", "go-getter source of the definitions bundle (git::, https://, s3::, file path)")
		name = flag.String("name", "worldgen.yaml", "definitions file inside the bundle")
		out  = flag.String("o", "./configs/remote", "output dir path")
	)
	flag.Parse()

	if *src == "" {
		log.Fatal("source url required")
	}
	if *out == "" {
		log.Fatal("output dir path required")
	}

	if err := os.RemoveAll(*out); err != nil {
		log.Fatal(err)
	}

	log.Default().Printf("start downloading definitions %s", *src)

	if err := get.Get(*out, *src); err != nil {
		log.Fatalf("download %s: %v", *src, err)
	}

	path := filepath.Join(*out, *name)
	a, err := settings.Load(path)
	if err != nil {
		log.Fatalf("downloaded definitions are invalid: %v", err)
	}

	log.Default().Printf("done downloading definitions %s", path)
	fmt.Printf("chunk_size=%d depth=%d ores=%d entities=%d structures=%d\n",
		a.ChunkSize, a.Depth, len(a.Ores), len(a.Entities.Definitions), len(a.Structures))
}
