package main

import (
	"fmt"

	"github.com/technosupport/campus-presence/internal/auth"
)

func main() {
	hash, _ := auth.HashPassword("adminpassword")
	fmt.Println(hash)
}
