// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	crypto "github.com/luxfi/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/precompile/vault"
)

func main() {
	root := &cobra.Command{
		Use:          "ordersigner",
		Short:        "Sign and verify LXVault automation orders",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Build and sign an automation order",
		RunE:  runSign,
	}

	signCmd.Flags().String("key", "", "owner private key (hex)")
	signCmd.Flags().String("key-file", "", "file holding the owner private key (hex)")
	signCmd.Flags().Uint64("chain-id", 0, "chain id the order is valid on")
	signCmd.Flags().String("vault", "", "vault account address")
	signCmd.Flags().Int("tick-lower", 0, "authorized lower tick")
	signCmd.Flags().Int("tick-upper", 0, "authorized upper tick")
	signCmd.Flags().String("amount0-min", "0", "authorized token0 minimum")
	signCmd.Flags().String("amount1-min", "0", "authorized token1 minimum")
	signCmd.Flags().Uint64("ttl", 3600, "order lifetime in seconds (ignored when --deadline set)")
	signCmd.Flags().Uint64("deadline", 0, "absolute expiry (unix seconds)")
	signCmd.Flags().String("out", "", "write signed order JSON here instead of stdout")
	signCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(signCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Recover the signer of a signed order",
		RunE:  runVerify,
	}

	verifyCmd.Flags().String("order", "", "signed order JSON file (from sign)")
	verifyCmd.Flags().String("signature", "", "signature hex (overrides the file's)")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(verifyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// SignedOrder is the sign command's output document
type SignedOrder struct {
	Order     *vault.AutomationOrder `json:"order"`
	Digest    string                 `json:"digest"`
	Signature string                 `json:"signature"`
	Signer    string                 `json:"signer"`
}

func runSign(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	keyHex := cfg.KeyHex
	if keyHex == "" && cfg.KeyFile != "" {
		raw, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		keyHex = strings.TrimSpace(string(raw))
	}
	if keyHex == "" {
		return fmt.Errorf("private key is required (--key or --key-file)")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}

	if cfg.Vault == "" {
		return fmt.Errorf("vault address is required")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}

	amount0Min, ok := new(big.Int).SetString(cfg.Amount0Min, 10)
	if !ok {
		return fmt.Errorf("invalid amount0-min %q", cfg.Amount0Min)
	}
	amount1Min, ok := new(big.Int).SetString(cfg.Amount1Min, 10)
	if !ok {
		return fmt.Errorf("invalid amount1-min %q", cfg.Amount1Min)
	}

	deadline := cfg.Deadline
	if deadline == 0 {
		deadline = uint64(time.Now().Unix()) + cfg.TTL
	}

	order := &vault.AutomationOrder{
		ChainID:    cfg.ChainID,
		Vault:      common.HexToAddress(cfg.Vault),
		TickLower:  int32(cfg.TickLower),
		TickUpper:  int32(cfg.TickUpper),
		Amount0Min: amount0Min,
		Amount1Min: amount1Min,
		Deadline:   deadline,
	}

	sig, err := vault.SignOrder(order, key)
	if err != nil {
		return fmt.Errorf("sign order: %w", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)

	logger.Info("order signed",
		zap.Uint64("chain_id", order.ChainID),
		zap.String("vault", order.Vault.Hex()),
		zap.Int32("tick_lower", order.TickLower),
		zap.Int32("tick_upper", order.TickUpper),
		zap.Uint64("deadline", order.Deadline),
		zap.String("signer", signer.Hex()),
	)

	doc := SignedOrder{
		Order:     order,
		Digest:    vault.HashOrder(order).Hex(),
		Signature: "0x" + hex.EncodeToString(sig),
		Signer:    signer.Hex(),
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if cfg.Out != "" {
		return os.WriteFile(cfg.Out, append(out, '\n'), 0o600)
	}
	fmt.Println(string(out))
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.OrderFile == "" {
		return fmt.Errorf("order file is required")
	}
	raw, err := os.ReadFile(cfg.OrderFile)
	if err != nil {
		return fmt.Errorf("read order: %w", err)
	}
	var doc SignedOrder
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse order: %w", err)
	}
	if doc.Order == nil {
		return fmt.Errorf("order file holds no order")
	}

	sigHex := doc.Signature
	if cfg.Signature != "" {
		sigHex = cfg.Signature
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	signer, err := vault.RecoverOrderSigner(doc.Order, sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}

	expired := doc.Order.Deadline <= uint64(time.Now().Unix())
	logger.Info("order verified",
		zap.String("signer", signer.Hex()),
		zap.String("vault", doc.Order.Vault.Hex()),
		zap.Uint64("deadline", doc.Order.Deadline),
		zap.Bool("expired", expired),
	)

	result := map[string]any{
		"signer":  signer.Hex(),
		"digest":  vault.HashOrder(doc.Order).Hex(),
		"expired": expired,
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
