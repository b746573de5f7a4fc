// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/cs104"
)

var (
	clientAddr    string
	clientConfig  string
	clientWait    time.Duration
	clientVerbose bool
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a controlled station, run a general interrogation and print the replies",
	RunE:  runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientAddr, "addr", "localhost:2404", "remote server address")
	clientCmd.Flags().StringVar(&clientConfig, "config", "", "YAML configuration file")
	clientCmd.Flags().DurationVar(&clientWait, "wait", 30*time.Second, "time to wait for the interrogation to terminate")
	clientCmd.Flags().BoolVar(&clientVerbose, "verbose", false, "protocol debug logging")
}

// cliClientHandler prints interrogation results and spontaneous data.
type cliClientHandler struct {
	terminated chan error
}

func (sf *cliClientHandler) printObjects(a *asdu.ASDU) {
	switch a.Type {
	case asdu.M_SP_NA_1, asdu.M_SP_TB_1:
		infos, err := a.GetSinglePoint()
		if err != nil {
			return
		}
		for _, p := range infos {
			fmt.Printf("  single point %d = %v (qds=%#02x)\n", p.Ioa, p.Value, byte(p.Qds))
		}
	case asdu.M_DP_NA_1:
		infos, err := a.GetDoublePoint()
		if err != nil {
			return
		}
		for _, p := range infos {
			fmt.Printf("  double point %d = %d (qds=%#02x)\n", p.Ioa, p.Value, byte(p.Qds))
		}
	case asdu.M_ME_NA_1:
		infos, err := a.GetMeasuredValueNormal()
		if err != nil {
			return
		}
		for _, p := range infos {
			fmt.Printf("  measured %d = %.6f (qds=%#02x)\n", p.Ioa, p.Value.Float64(), byte(p.Qds))
		}
	case asdu.M_ME_NC_1, asdu.M_ME_TF_1:
		infos, err := a.GetMeasuredValueFloat()
		if err != nil {
			return
		}
		for _, p := range infos {
			fmt.Printf("  measured %d = %g (qds=%#02x)\n", p.Ioa, p.Value, byte(p.Qds))
		}
	}
}

func (sf *cliClientHandler) InterrogationHandler(_ asdu.Connect, a *asdu.ASDU) error {
	fmt.Printf("interrogated: %s\n", a.Identifier)
	sf.printObjects(a)
	return nil
}

func (sf *cliClientHandler) CounterInterrogationHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (sf *cliClientHandler) ClockSyncHandler(asdu.Connect, *asdu.ASDU) error { return nil }

func (sf *cliClientHandler) ASDUHandler(_ asdu.Connect, a *asdu.ASDU) error {
	if a.Type == asdu.C_IC_NA_1 && a.Coa.Cause == asdu.ActivationTerm {
		select {
		case sf.terminated <- nil:
		default:
		}
		return nil
	}
	fmt.Printf("received: %s\n", a.Identifier)
	sf.printObjects(a)
	return nil
}

func (sf *cliClientHandler) ASDUHandlerAll(asdu.Connect, *asdu.ASDU) error { return nil }

func runClient(*cobra.Command, []string) error {
	cfg, err := loadConfig(clientConfig)
	if err != nil {
		return err
	}
	sessionCfg, err := cfg.sessionConfig()
	if err != nil {
		return err
	}

	handler := &cliClientHandler{terminated: make(chan error, 1)}
	option := cs104.NewOption().
		SetConfig(sessionCfg).
		SetRemoteServer(clientAddr).
		SetAutoReconnect(false)
	client := cs104.NewClient(handler, option)
	client.SetLogMode(clientVerbose)

	connected := make(chan struct{}, 1)
	lost := make(chan error, 1)
	client.SetOnConnectHandler(func(*cs104.Client) {
		connected <- struct{}{}
	})
	client.SetConnectionLostHandler(func(_ *cs104.Client, err error) {
		lost <- err
	})
	client.SetConnectErrorHandler(func(_ *cs104.Client, err error) {
		lost <- err
	})

	if err := client.Start(); err != nil {
		return err
	}
	defer client.Close()

	select {
	case <-connected:
	case err := <-lost:
		if err == nil {
			err = cs104.ErrTransportClosed
		}
		return err
	case <-time.After(sessionCfg.ConnectTimeout0 + time.Second):
		return cs104.ErrTimeoutT0
	}

	ca := asdu.CommonAddr(cfg.CommonAddress)
	if err := client.InterrogationCmd(asdu.CauseOf(asdu.Activation), ca, asdu.QOIStation); err != nil {
		return err
	}

	select {
	case <-handler.terminated:
		fmt.Println("interrogation terminated")
		return nil
	case err := <-lost:
		if err == nil {
			err = cs104.ErrTransportClosed
		}
		return err
	case <-time.After(clientWait):
		return cs104.ErrTimeoutT1
	}
}
