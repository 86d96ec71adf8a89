package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/server"
)

func main() {

	ctx := context.Background()

	if err := server.Main(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
