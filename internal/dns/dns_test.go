package dns

import (
	"context"
	"net"
	"testing"
)

func TestLookupIPLiteral(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "::1"} {
		got, err := Lookup(context.Background(), ip)
		if err != nil {
			t.Errorf("Lookup(%s): unexpected error %v", ip, err)
		}
		if got != ip {
			t.Errorf("Lookup(%s): expected literal back, got %s", ip, got)
		}
	}
}

func TestLookupLocalhost(t *testing.T) {
	got, err := Lookup(context.Background(), "localhost")
	if err != nil {
		t.Skipf("no local resolver: %v", err)
	}
	if net.ParseIP(got) == nil {
		t.Errorf("Expected an IP address, got %q", got)
	}
}

func TestDialContextLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
	}()

	conn, err := DialContext(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Expected dial to succeed, got %v", err)
	}
	conn.Close()
}

func TestTrimBrackets(t *testing.T) {
	if got := trimBrackets("[2606:4700:4700::1111]"); got != "2606:4700:4700::1111" {
		t.Errorf("Expected bare IPv6, got %s", got)
	}
	if got := trimBrackets("1.1.1.1"); got != "1.1.1.1" {
		t.Errorf("Expected IPv4 unchanged, got %s", got)
	}
}
