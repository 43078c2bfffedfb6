package mail

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

// testSMTPServer is a minimal SMTP server that accepts every connection and keeps
// the DATA section of each message it receives.
type testSMTPServer struct {
	host string
	port int

	ln    net.Listener
	wg    sync.WaitGroup
	mu    sync.Mutex
	conns []net.Conn
	data  []string
	rcpts []string

	// rejectRcpt answers RCPT TO with a permanent failure
	rejectRcpt bool
	// silent never sends the greeting, so clients hang until they give up
	silent bool
}

func startTestSMTPServer(t *testing.T, configure ...func(*testSMTPServer)) *testSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &testSMTPServer{ln: ln, host: "127.0.0.1", port: ln.Addr().(*net.TCPAddr).Port}
	for _, c := range configure {
		c(s)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, conn)
			s.mu.Unlock()

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serve(conn)
			}()
		}
	}()

	t.Cleanup(s.stop)
	return s
}

func (s *testSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	if s.silent {
		// hold the connection open until the test ends
		_, _ = bufio.NewReader(conn).ReadString('\n')
		return
	}

	r := bufio.NewReader(conn)
	fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "EHLO") || strings.HasPrefix(line, "HELO"):
			fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
		case strings.HasPrefix(line, "MAIL FROM:"):
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "RCPT TO:"):
			if s.rejectRcpt {
				fmt.Fprintf(conn, "550 5.1.1 mailbox unavailable\r\n")
				continue
			}
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimPrefix(line, "RCPT TO:"))
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "DATA"):
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			var b strings.Builder
			for {
				dline, derr := r.ReadString('\n')
				if derr != nil {
					return
				}
				if strings.TrimSpace(dline) == "." {
					break
				}
				b.WriteString(dline)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
		case strings.HasPrefix(line, "QUIT"):
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

func (s *testSMTPServer) stop() {
	_ = s.ln.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// messages returns the DATA sections received so far.
func (s *testSMTPServer) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data...)
}

func (s *testSMTPServer) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rcpts...)
}
