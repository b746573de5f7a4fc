// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/cs104"
)

var (
	serverListen  string
	serverConfig  string
	serverVerbose bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve a controlled station with a canned process image",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverListen, "listen", ":2404", "listen address")
	serverCmd.Flags().StringVar(&serverConfig, "config", "", "YAML configuration file")
	serverCmd.Flags().BoolVar(&serverVerbose, "verbose", false, "protocol debug logging")
}

// cliServerHandler serves a small fixed process image.
type cliServerHandler struct {
	ca asdu.CommonAddr
}

func (sf *cliServerHandler) InterrogationHandler(c asdu.Connect, a *asdu.ASDU,
	qoi asdu.QualifierOfInterrogation) error {
	if qoi != asdu.QOIStation {
		reply := a.Mirror(asdu.ActivationCon)
		reply.Coa.IsNegative = true
		return c.Send(reply)
	}
	if err := a.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}
	cause := asdu.CauseOf(asdu.InterrogatedByStation)
	if err := asdu.Single(c, false, cause, sf.ca,
		asdu.SinglePointInfo{Ioa: 100, Value: true},
		asdu.SinglePointInfo{Ioa: 101, Value: false},
	); err != nil {
		return err
	}
	if err := asdu.MeasuredValueFloat(c, false, cause, sf.ca,
		asdu.MeasuredValueFloatInfo{Ioa: 200, Value: 3.14},
		asdu.MeasuredValueFloatInfo{Ioa: 201, Value: -1.5},
	); err != nil {
		return err
	}
	return a.SendReplyMirror(c, asdu.ActivationTerm)
}

func (sf *cliServerHandler) CounterInterrogationHandler(c asdu.Connect, a *asdu.ASDU,
	_ asdu.QualifierCountCall) error {
	reply := a.Mirror(asdu.ActivationCon)
	reply.Coa.IsNegative = true
	return c.Send(reply)
}

func (sf *cliServerHandler) ClockSyncHandler(c asdu.Connect, a *asdu.ASDU, t time.Time) error {
	fmt.Printf("clock synchronized to %s\n", t.Format(time.RFC3339))
	return a.SendReplyMirror(c, asdu.ActivationCon)
}

func (sf *cliServerHandler) SingleCmdHandler(c asdu.Connect, a *asdu.ASDU,
	cmd asdu.SingleCommandInfo) error {
	fmt.Printf("single command %d = %v (select=%v)\n", cmd.Ioa, cmd.Value, cmd.Select)
	if err := a.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}
	return a.SendReplyMirror(c, asdu.ActivationTerm)
}

func (sf *cliServerHandler) DoubleCmdHandler(c asdu.Connect, a *asdu.ASDU,
	cmd asdu.DoubleCommandInfo) error {
	fmt.Printf("double command %d = %d\n", cmd.Ioa, cmd.Value)
	if err := a.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}
	return a.SendReplyMirror(c, asdu.ActivationTerm)
}

func (sf *cliServerHandler) ASDUHandler(c asdu.Connect, a *asdu.ASDU) error {
	reply := a.Mirror(asdu.UnknownTypeID)
	reply.Coa.IsNegative = true
	return c.Send(reply)
}

func (sf *cliServerHandler) ASDUHandlerAll(asdu.Connect, *asdu.ASDU) error { return nil }

func runServer(*cobra.Command, []string) error {
	cfg, err := loadConfig(serverConfig)
	if err != nil {
		return err
	}
	sessionCfg, err := cfg.sessionConfig()
	if err != nil {
		return err
	}

	server := cs104.NewServer(&cliServerHandler{ca: asdu.CommonAddr(cfg.CommonAddress)})
	server.SetConfig(sessionCfg)
	server.SetLogMode(serverVerbose)
	if len(cfg.Allowlist) > 0 {
		server.SetConnectionPolicy(cs104.NewIPAllowlist(cfg.Allowlist...).Policy())
	}
	if cfg.RateLimit > 0 {
		server.SetRateCheck(cs104.NewRateLimiter(cfg.RateLimit, int(cfg.RateLimit)+1).Check)
	}

	if cfg.Metrics != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics, mux); err != nil {
				fmt.Println("metrics endpoint failed:", err)
			}
		}()
	}

	return server.ListenAndServe(serverListen)
}
