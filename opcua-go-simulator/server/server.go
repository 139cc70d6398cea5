// Package server exposes the simulator's variables to bench tooling over a
// plain line protocol (BROWSE / READ / WRITE), served on TCP or a serial
// port. It is an operator surface, not the OPC UA wire protocol.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"opcua-tools/opcua-go-simulator/simulator"
)

// Server answers line-protocol requests against the variable registry. Reads
// go straight to the substrate; writes are queued onto the engine's command
// channel so binding state keeps a single writer.
type Server struct {
	reg   *simulator.Registry
	state *simulator.State
	log   *log.Logger
}

func NewServer(reg *simulator.Registry, state *simulator.State, logger *log.Logger) *Server {
	return &Server{reg: reg, state: state, log: logger}
}

func (s *Server) handleLine(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToUpper(fields[0]) {
	case "BROWSE":
		values, order, _ := s.state.Snapshot()
		var b strings.Builder
		for _, name := range order {
			info := values[name]
			fmt.Fprintf(&b, "%s %s %s %s\r\n", info.NodeID, name, info.Type, info.Text)
		}
		b.WriteString("END")
		return b.String()
	case "READ":
		if len(fields) != 2 {
			return "ERR READ requires a variable name or node id"
		}
		entry, ok := s.reg.Lookup(fields[1])
		if !ok {
			return fmt.Sprintf("ERR unknown variable %s", fields[1])
		}
		value, err := entry.Node.ReadValue(ctx)
		if err != nil {
			return fmt.Sprintf("ERR read failed: %v", err)
		}
		return fmt.Sprintf("OK %v", value)
	case "WRITE":
		if len(fields) < 3 {
			return "ERR WRITE requires a variable and a value"
		}
		entry, ok := s.reg.Lookup(fields[1])
		if !ok {
			return fmt.Sprintf("ERR unknown variable %s", fields[1])
		}
		if !entry.Writable {
			return fmt.Sprintf("ERR variable %s is not writable", fields[1])
		}
		s.state.SendCommand(simulator.WriteCmd{Key: fields[1], Raw: strings.Join(fields[2:], " ")})
		return fmt.Sprintf("QUEUED %s", entry.Name)
	default:
		return fmt.Sprintf("ERR unknown command %s", fields[0])
	}
}

func (s *Server) handleConnection(ctx context.Context, conn io.ReadWriter) {
	defer func() {
		if c, ok := conn.(io.Closer); ok {
			c.Close()
		}
	}()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.log.Printf("SRV RX: %s", line)
		response := s.handleLine(ctx, line)
		if response == "" {
			continue
		}
		s.log.Printf("SRV TX: %s", response)
		if _, err := fmt.Fprintf(conn, "%s\r\n", response); err != nil {
			s.log.Printf("Connection write error: %v", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Printf("Connection read error: %v", err)
	}
}

// RunTCP serves the line protocol on addr until the context is cancelled.
func (s *Server) RunTCP(ctx context.Context, wg *sync.WaitGroup, addr string) {
	defer wg.Done()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Printf("Failed to start TCP listener on %s: %v", addr, err)
		return
	}
	s.log.Printf("Access server listening on %s", addr)
	go func() {
		<-ctx.Done()
		s.log.Println("TCP listener shutting down.")
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if !errors.Is(err, net.ErrClosed) {
					s.log.Printf("Failed to accept connection: %v", err)
				}
			}
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// RunSerial serves the line protocol on a serial port, reopening the port
// whenever the connection drops.
func (s *Server) RunSerial(ctx context.Context, wg *sync.WaitGroup, portName string) {
	defer wg.Done()
	mode := &serial.Mode{BaudRate: 9600}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		port, err := serial.Open(portName, mode)
		if err != nil {
			s.log.Printf("Failed to open serial port %s: %v. Retrying in 5s...", portName, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		s.log.Printf("Serial port %s opened successfully.", portName)
		go func() {
			<-ctx.Done()
			port.Close()
		}()
		s.handleConnection(ctx, port)
		s.log.Printf("Serial port %s connection closed, reopening...", portName)
	}
}
