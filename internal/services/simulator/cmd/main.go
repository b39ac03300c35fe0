package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/farmsim/internal/config"
	"github.com/LeonardoBeccarini/farmsim/internal/services/control"
	"github.com/LeonardoBeccarini/farmsim/internal/services/telemetry"
	"github.com/LeonardoBeccarini/farmsim/internal/services/weather"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
	"github.com/LeonardoBeccarini/farmsim/pkg/dedup"
	"github.com/LeonardoBeccarini/farmsim/pkg/rabbitmq"
)

func main() {
	log.SetPrefix("farmsim ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", os.Getenv("SIM_CONFIG"), "YAML scenario/config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Simulation ===
	sim, err := simulation.New(cfg.Scenario)
	if err != nil {
		log.Fatalf("simulation: %v", err)
	}
	history := simulation.NewHistory(cfg.Clock.HistorySize)
	metrics := telemetry.NewMetrics()
	recorder, err := telemetry.NewRecorder(cfg.CSV.Path)
	if err != nil {
		log.Fatalf("csv: %v", err)
	}
	defer recorder.Close()

	engCfg := cfg.EngineConfig()
	engCfg.TickObservers = append(engCfg.TickObservers, metrics.ObserveTick)
	engine := simulation.NewEngine(sim, engCfg, history, metrics, recorder)
	ctrl := control.NewController(engine, history)
	hub := control.NewHub(ctrl)
	engine.AddSink(hub)

	// === MQTT (optional) ===
	var mqClient mqtt.Client
	if cfg.MQTT.Enabled {
		mqClient, err = rabbitmq.NewRabbitMQConn(ctx, cfg.MQTT.Broker())
		if err != nil {
			log.Fatalf("mqtt: %v", err)
		}
		defer rabbitmq.CloseRabbitMQConn(mqClient)

		engine.AddSink(telemetry.NewStatsPublisher(rabbitmq.NewPublisher(mqClient, cfg.MQTT.StatsTopic)))

		handler := control.NewCommandHandler(ctrl, dedup.New(cfg.MQTT.DedupTTL, 20000)).
			PublishResults(rabbitmq.NewPublisher(mqClient, "sim/command-result"))
		consumer := rabbitmq.NewConsumer(mqClient, handler.Handle, cfg.MQTT.CommandTopics...)
		go func() {
			if err := consumer.ConsumeMessage(ctx); err != nil {
				log.Printf("mqtt: consumer stopped: %v", err)
			}
		}()
	}

	// === InfluxDB (optional) ===
	var (
		influxSink *telemetry.InfluxSink
		querier    telemetry.FluxQuerier
	)
	if cfg.Influx.Enabled {
		influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer influx.Close()
		influxSink = telemetry.NewInfluxSink(influx.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), telemetry.InfluxSinkConfig{
			Measurement:     cfg.Influx.Measurement,
			Timeout:         cfg.Influx.Timeout,
			BreakerFailures: cfg.Influx.BreakerFailures,
			BreakerOpen:     cfg.Influx.BreakerOpen,
			BreakerInterval: cfg.Influx.BreakerInterval,
		})
		engine.AddSink(influxSink)
		querier = influx.QueryAPI(cfg.Influx.Org)
	}

	// === Weather (optional) ===
	if cfg.Weather.Enabled {
		feed := weather.NewFeed(weather.NewOWMClient(cfg.Weather.APIKey), sim.SetTemperature,
			cfg.Weather.Lat, cfg.Weather.Lon, cfg.Weather.Interval)
		go feed.Run(ctx)
	}

	// === HTTP ===
	mux := control.NewHTTPMux(ctrl, control.HTTPDeps{
		History: telemetry.NewHistoryHandler(querier, cfg.Influx.Bucket, cfg.Influx.Measurement, history),
		Metrics: metrics.Handler(),
		Stream:  hub,
		Ready: func() error {
			if mqClient != nil && !mqClient.IsConnectionOpen() {
				return errors.New("mqtt not connected")
			}
			if influxSink != nil && influxSink.State() == gobreaker.StateOpen {
				return errors.New("influx breaker open")
			}
			return nil
		},
	})
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("sim: HTTP listening on %s", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// === gRPC ===
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPC.Port))
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(control.LogUnary))
	control.RegisterSimulationControlServer(gs, control.NewGRPCServer(ctrl))
	go func() {
		log.Printf("sim: gRPC %s listening on %s", control.ServiceName, lis.Addr())
		if err := gs.Serve(lis); err != nil {
			log.Fatalf("gRPC serve error: %v", err)
		}
	}()

	if cfg.Clock.Autostart {
		engine.Start()
	}

	<-ctx.Done()
	stop()
	log.Printf("sim: shutting down...")

	engine.Stop()
	gs.GracefulStop()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	log.Println("sim: shutdown complete")
}
