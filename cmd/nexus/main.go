package main

import (
	"log"
	"net/http"
	"os"

	"github.com/thought-machine/go-flags"

	"nexus/internal/compile"
	"nexus/internal/devserver"
	"nexus/internal/platform"
	"nexus/internal/prodbuild"
	"nexus/internal/resolver"
)

var opts = struct {
	Usage string

	Dev struct {
		Root     string `short:"r" long:"root" default:"." description:"Project root directory"`
		Port     string `short:"p" long:"port" default:"8080" description:"HTTP port"`
		Platform string `long:"platform" default:"browser" description:"Target platform: browser, node"`
	} `command:"dev" alias:"d" description:"Start the dev server with on-demand compilation and HMR"`

	Build struct {
		Root     string `short:"r" long:"root" default:"." description:"Project root directory"`
		Platform string `long:"platform" default:"browser" description:"Target platform: browser, node"`
	} `command:"build" alias:"b" description:"Produce a production build under dist/"`
}{
	Usage: `
nexus is a from-scratch ESM bundler and dev server.

It provides these main operations:
  - dev:   start a dev server that compiles modules on demand and pushes HMR updates
  - build: produce a code-split production build under dist/
`,
}

var subCommands = map[string]func() int{
	"dev": func() int {
		watcher, err := platform.NewFSNotifyFileWatcher()
		if err != nil {
			log.Printf("nexus: file watcher unavailable: %v", err)
		}
		if watcher != nil {
			if err := watcher.Add(opts.Dev.Root); err != nil {
				log.Printf("nexus: watch %s: %v", opts.Dev.Root, err)
			}
			defer watcher.Close()
		}

		var fw platform.FileWatcher
		if watcher != nil {
			fw = watcher
		}

		srv := devserver.New(opts.Dev.Root, resolver.New(opts.Dev.Platform), compile.ESBuildCompiler{}, fw)
		srv.Watch()

		log.Printf("nexus dev server listening on :%s", opts.Dev.Port)
		if err := http.ListenAndServe(":"+opts.Dev.Port, srv); err != nil {
			log.Printf("nexus: server error: %v", err)
			return 1
		}
		return 0
	},
	"build": func() int {
		entry, err := prodbuild.Build(prodbuild.Options{
			Root:     opts.Build.Root,
			Resolver: resolver.New(opts.Build.Platform),
			Compiler: compile.ESBuildCompiler{},
		})
		if err != nil {
			log.Printf("nexus: build failed: %v", err)
			if err == prodbuild.ErrNoEntry {
				return 2
			}
			return 1
		}
		log.Printf("nexus: built %s into dist/", entry)
		return 0
	},
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}
	if p.Active == nil {
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	os.Exit(subCommands[p.Active.Name]())
}
