package main

import "cdms/internal/app/server"

func main() {
	server.Run()
}
