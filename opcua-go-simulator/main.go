package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"opcua-tools/opcua-go-simulator/config"
	"opcua-tools/opcua-go-simulator/database"
	"opcua-tools/opcua-go-simulator/server"
	"opcua-tools/opcua-go-simulator/simulator"
	"opcua-tools/opcua-go-simulator/substrate"
	"opcua-tools/opcua-go-simulator/tui"
	"opcua-tools/opcua-go-simulator/version"
)

func main() {
	// --- Argument Parsing ---
	cfgPath := flag.String("config", "opcua_plc_simulator.yaml", "Path to the simulator configuration file")
	mode := flag.String("mode", "tcp", "Access server mode: 'tcp', 'serial' or 'none'")
	listenAddr := flag.String("listen", config.DefaultTCPListenAddr, "TCP listen address for the access server")
	serialPort := flag.String("port", config.DefaultSerialPort, "Serial port for the access server (e.g., COM5 or /dev/ttyUSB0)")
	dbDir := flag.String("db-dir", ".", "Directory for daily event database files")
	seed := flag.Int64("seed", 0, "Random seed for the simulation (0 = time-based)")
	headless := flag.Bool("headless", false, "Run without the TUI")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("opcua-go-simulator %s (built %s)\n", version.Version, version.BuildDate)
		return
	}

	// --- Logging Setup ---
	simLogFile, err := os.OpenFile("simulator_events.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("Failed to open simulator log file: %v", err)
	}
	defer simLogFile.Close()
	simLogger := log.New(simLogFile, "", log.LstdFlags|log.Lmicroseconds)

	dbLogFile, err := os.OpenFile("simulator_database.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("Failed to open database log file: %v", err)
	}
	defer dbLogFile.Close()
	dbLogger := log.New(dbLogFile, "DB: ", log.LstdFlags|log.Lmicroseconds)

	// --- Configuration Bootstrap ---
	path := *cfgPath
	if env := os.Getenv("OPCUA_SIM_CONFIG_FILE"); env != "" {
		path = env
	}
	autoCreate := true
	if env := os.Getenv("OPCUA_SIM_AUTO_CREATE"); env != "" {
		autoCreate = simulator.ToBool(env)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && autoCreate {
		simLogger.Printf("Config not found, creating example: %s", path)
		if err := config.WriteExample(path); err != nil {
			log.Fatalf("FATAL: Could not create example config %s: %v", path, err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("FATAL: Could not load configuration %s: %v", path, err)
	}

	// --- Address Space Setup ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	space := substrate.NewMemorySpace()
	if err := space.Init(ctx); err != nil {
		log.Fatalf("FATAL: Could not initialize address space: %v", err)
	}
	space.SetEndpoint(cfg.Server.Endpoint)
	nsIdx, err := space.RegisterNamespace(ctx, cfg.Server.NamespaceURI)
	if err != nil {
		log.Fatalf("FATAL: Could not register namespace: %v", err)
	}
	simLogger.Printf("Endpoint: %s", cfg.Server.Endpoint)
	simLogger.Printf("Namespace URI: %s (ns=%d)", cfg.Server.NamespaceURI, nsIdx)

	builder := simulator.NewBuilder(space, nsIdx, simLogger)
	reg, err := builder.Build(ctx, cfg, time.Now())
	if err != nil {
		log.Fatalf("FATAL: Could not build address space: %v", err)
	}
	simLogger.Printf("running with %d simulated variables", len(reg.Bindings))

	// --- Channel and State Initialization ---
	eventChan := make(chan database.Event, 100)
	state := simulator.NewState(reg)

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))
	engine := simulator.NewEngine(reg, state, cfg.Server.TickMS, rng, simLogger, eventChan)

	// --- Start Goroutines ---
	var wg sync.WaitGroup
	wg.Add(2)
	go engine.Run(ctx, &wg)
	go database.Writer(ctx, &wg, *dbDir, eventChan, dbLogger)

	accessServer := server.NewServer(reg, state, simLogger)
	switch *mode {
	case "tcp":
		wg.Add(1)
		go accessServer.RunTCP(ctx, &wg, *listenAddr)
	case "serial":
		wg.Add(1)
		go accessServer.RunSerial(ctx, &wg, *serialPort)
	case "none":
	default:
		log.Fatalf("Invalid mode: %s. Choose 'tcp', 'serial' or 'none'", *mode)
	}

	// --- Graceful Shutdown Handling ---
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	if *headless {
		<-shutdownChan
		simLogger.Println("Shutdown signal received. Cleaning up.")
		cancel()
	} else {
		p := tea.NewProgram(tui.NewModel(state, simLogger), tea.WithAltScreen())
		go func() {
			if _, err := p.Run(); err != nil {
				fmt.Printf("Error running TUI: %v\n", err)
			}
			cancel()
		}()
		select {
		case <-shutdownChan:
			simLogger.Println("Shutdown signal received. Cleaning up.")
			p.Quit()
		case <-ctx.Done():
			simLogger.Println("TUI exited. Shutting down other processes.")
		}
	}

	simLogger.Println("Waiting for goroutines to finish...")
	wg.Wait()
	close(eventChan)
	simLogger.Println("All goroutines finished. Exiting.")
}
