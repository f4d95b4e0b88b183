//go:build ignore

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Generates the ADMIN_PASSWORD_HASH value for the admin API.
// Usage: go run scripts/admin_password_hash.go < password.txt
func main() {
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && password == "" {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/admin_password_hash.go < password.txt")
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hashedPassword)
}
