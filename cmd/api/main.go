package main

import (
	"github.com/tech-arch1tect/loginguard/app"
)

func main() {
	app.New(nil).Run()
}
