// Command admin-hash prints bcrypt hashes for the admin credential pair,
// ready to paste into ADMIN_USERNAME_HASH and ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	in := bufio.NewReader(os.Stdin)
	username := prompt(in, "Admin username: ")
	password := prompt(in, "Admin password: ")
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "username and password are required")
		os.Exit(1)
	}

	for _, pair := range []struct{ key, value string }{
		{"ADMIN_USERNAME_HASH", username},
		{"ADMIN_PASSWORD_HASH", password},
	} {
		h, err := bcrypt.GenerateFromPassword([]byte(pair.value), *cost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash %s: %v\n", pair.key, err)
			os.Exit(1)
		}
		// Single quotes keep the $ separators literal in .env files.
		fmt.Printf("%s='%s'\n", pair.key, h)
	}
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
