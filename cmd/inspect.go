package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"usdo-ledger/core"
	"usdo-ledger/store"
)

type summary struct {
	Version      int      `json:"version"`
	History      int      `json:"history"`
	Multiplier   *big.Int `json:"multiplier"`
	TotalShares  *big.Int `json:"total_shares"`
	TotalWrapped *big.Int `json:"total_wrapped"`
	Holders      int      `json:"holders"`
	Assets       int      `json:"assets"`
	Queue        int      `json:"queue"`
	Nonce        uint64   `json:"nonce"`
	Paused       bool     `json:"paused"`
}

func summarize(st core.State, version, history int) summary {
	return summary{
		Version:      version,
		History:      history,
		Multiplier:   st.Ledger.Multiplier,
		TotalShares:  st.Ledger.TotalShares,
		TotalWrapped: st.Wrapped.Total,
		Holders:      len(st.Ledger.Shares),
		Assets:       len(st.Assets.Assets),
		Queue:        len(st.Queue.Requests),
		Nonce:        st.Queue.Nonce,
		Paused:       st.Ledger.Paused,
	}
}

func inspectCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the latest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DataDir, cfg.History)
			if err != nil {
				return err
			}
			defer db.Close()

			st, found, err := db.Load()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no snapshot in %s", cfg.DataDir)
			}

			var out interface{} = st
			if !full {
				version, err := db.Version()
				if err != nil {
					return err
				}
				history, err := db.History()
				if err != nil {
					return err
				}
				out = summarize(st, version, history)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print the whole state instead of a summary")
	return cmd
}
