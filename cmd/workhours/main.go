package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/kmalloy/workhours/internal/workhourscli"
)

func main() {
	if err := workhourscli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, workhourscli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			workhourscli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
