package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Check if a password was provided as a command-line argument.
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run main.go <password>")
	}

	password := os.Args[1]

	// Cost 12 matches what the registration flow uses, so seeded admin
	// accounts hash the same way as real ones.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	// Print the hash to the console. You can then copy and paste this.
	fmt.Println(string(hashedPassword))
}
