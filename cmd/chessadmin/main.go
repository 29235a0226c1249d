// chessadmin is the thin duplex terminal front-end to the admin channel:
// every line typed is sent as a server command, every record received is
// printed. Type %QUIT to leave.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/udisondev/chessd/internal/client"
	"github.com/udisondev/chessd/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	stdin := bufio.NewScanner(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		if !stdin.Scan() {
			return ""
		}
		return strings.TrimSpace(stdin.Text())
	}

	var adminAuth, hostname, port string
	if len(args) > 0 {
		adminAuth = args[0]
	}
	if len(args) > 1 {
		hostname = args[1]
	}
	if len(args) > 2 {
		port = args[2]
	}
	if adminAuth == "" {
		adminAuth = prompt("enter password:")
	}
	if hostname == "" {
		hostname = prompt("enter address you want to connect with:")
	}
	if port == "" {
		port = prompt("enter port number:")
	}
	if hostname == "local" {
		ip, err := config.LocalIP()
		if err != nil {
			return err
		}
		hostname = ip
	}

	fmt.Printf("admin - connect to: %s / port: %s\n", hostname, port)
	fmt.Println("authentication:")
	fmt.Println(strings.Repeat("*", len(adminAuth)))

	c, err := client.DialAdmin(hostname, port, adminAuth)
	if err != nil {
		return err
	}
	defer c.Close()

	// Receiver: print every record until the server goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := c.NextMessage(0)
			if err != nil {
				slog.Info("connection closed", "err", err)
				return
			}
			fmt.Println(msg)
		}
	}()

	for stdin.Scan() {
		text := stdin.Text()
		if text == "%QUIT" {
			break
		}
		if err := c.Send(text); err != nil {
			slog.Info("send failed", "err", err)
			break
		}
	}
	c.Close()
	<-done
	return nil
}
