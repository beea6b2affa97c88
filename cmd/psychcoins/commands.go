package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/onemorebsmith/psychcoins/src/wallet"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress, balance and network for a stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			index, _ := cmd.Flags().GetInt("stage")
			if err := selectStage(ctx, a, index); err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), a.engine.View())
			return nil
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <action-id>",
	Short: "Toggle an action, e.g. startup-0 or interna-2",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := model.ParseActionId(args[0]); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			index, _ := cmd.Flags().GetInt("stage")
			if err := selectStage(ctx, a, index); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := a.engine.Toggle(ctx, model.ActionId(args[0]))
			if err != nil {
				return err
			}
			printResult(out, res)
			printView(out, a.engine.View())
			return nil
		})
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage <index>",
	Short: "Show the content and progress of a stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("stage index must be an integer: %w", err)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := selectStage(ctx, a, index); err != nil {
				return err
			}
			vm := a.engine.View()
			out := cmd.OutOrStdout()
			printStage(out, vm)
			printView(out, vm)
			return nil
		})
	},
}

var switchNetworkCmd = &cobra.Command{
	Use:   "switch-network",
	Short: "Move the wallet connection to the required chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.engine.SwitchNetwork(ctx); err != nil {
				return err
			}
			n := a.engine.View().Network
			fmt.Fprintf(cmd.OutOrStdout(), "connected to chain %s\n", n.CurrentChainId)
			return nil
		})
	},
}

var toolCmd = &cobra.Command{
	Use:   "tool <stage> <startup|mind>",
	Short: "Write a stage's tool to a markdown file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("stage index must be an integer: %w", err)
		}
		cat, err := model.ParseCategory(args[1])
		if err != nil {
			return err
		}
		name, body, err := registry.Default().Tool(index, cat)
		if err != nil {
			return err
		}
		if err := os.WriteFile(name, []byte(body+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", name)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("stage", 0, "stage index")
	toggleCmd.Flags().Int("stage", 0, "stage index the action belongs to")
	toggleCmd.Flags().Bool("yes", false, "sign without asking")
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var approver wallet.Approver = wallet.NewPromptApprover(cmd.InOrStdin(), cmd.OutOrStdout())
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		approver = wallet.AutoApprove()
	}
	a, err := buildApp(ctx, cmd, approver)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func selectStage(ctx context.Context, a *app, index int) error {
	if index == 0 {
		return a.engine.Refresh(ctx)
	}
	return a.engine.SelectStage(ctx, index)
}

func printResult(out io.Writer, res *reconciler.ToggleResult) {
	switch {
	case res.Skipped:
		fmt.Fprintf(out, "%s: a write is already pending\n", res.ActionId)
	case res.NeedsNetworkSwitch:
		fmt.Fprintf(out, "%s: wrong network, run `psychcoins switch-network` first\n", res.ActionId)
	case res.LocalOnly:
		fmt.Fprintf(out, "%s: set to %t locally, the ledger is written once the category is done\n", res.ActionId, res.Value)
	default:
		fmt.Fprintf(out, "%s: set to %t, wrote %v", res.ActionId, res.Value, res.Written)
		if res.Reward > 0 {
			fmt.Fprintf(out, " (+%d coins)", res.Reward)
		}
		fmt.Fprintln(out)
	}
}

func printStage(out io.Writer, vm reconciler.ViewModel) {
	fmt.Fprintf(out, "%s\n%s\n", vm.Stage.Title, vm.Stage.Story)
	for _, cat := range model.Categories {
		block := vm.Stage.Block(cat)
		fmt.Fprintf(out, "\n[%s] %s\n", cat, block.Lesson)
		for j, text := range block.Actions {
			fmt.Fprintf(out, "  %s  %s\n", model.NewActionId(cat, j), text)
		}
		if block.Tool != "" {
			fmt.Fprintf(out, "  tool: %s (%s)\n", block.Tool, block.ToolFile)
		}
	}
	fmt.Fprintln(out)
}

func printView(out io.Writer, vm reconciler.ViewModel) {
	fmt.Fprintf(out, "stage %d/%d: %s\n", vm.StageIndex+1, vm.StageCount, vm.StageTitle)
	fmt.Fprintf(out, "account: %s\n", vm.Account)
	fmt.Fprintf(out, "progress: %.0f%% (%d/%d)", vm.ProgressPercent, vm.CompletedCount, vm.TotalActions)
	if vm.BadgeUnlocked {
		fmt.Fprint(out, " 🏅 badge unlocked")
	}
	fmt.Fprintln(out)
	if vm.Balance != "" {
		fmt.Fprintf(out, "balance: %s coins\n", vm.BalanceWhole)
	}
	if vm.TotalCompleted != nil {
		fmt.Fprintf(out, "actions completed on the ledger: %d\n", *vm.TotalCompleted)
	}
	if !vm.Network.IsCorrect {
		fmt.Fprintf(out, "network: on chain %v, required %v\n", vm.Network.CurrentChainId, vm.Network.RequiredChainId)
	}
	ids := make([]string, 0, len(vm.Actions))
	for id := range vm.Actions {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := vm.Actions[model.ActionId(id)]
		mark := " "
		if st.Value {
			mark = "x"
		}
		line := fmt.Sprintf("  [%s] %-10s %s", mark, id, st.Status)
		if st.ErrorKind != model.KindNone {
			line += " (" + string(st.ErrorKind) + ")"
		}
		fmt.Fprintln(out, line)
	}
	for _, cat := range model.Categories {
		fmt.Fprintf(out, "next %s reward: %d\n", cat, vm.NextReward[cat])
	}
	if vm.LastError != nil {
		fmt.Fprintf(out, "last error: %s\n", vm.LastError.Message)
	}
}
