package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"go.dedis.ch/mpcsum/peer"
	"golang.org/x/xerrors"
)

// -----------------------------------------------------------------------------
// Party CMD Prompt

var actionOpts = []string{
	"🌱 Communicate shares",
	"🌿 Sum and distribute",
	"🌳 Give result",
	"🐋 Show shares",
	"🐙 Show sums",
	"🔑 Set secret",
	"🍃 Exit",
}

var errExit = xerrors.New("exit")

var actions = map[string]func(context.Context, peer.Peer) error{
	actionOpts[0]: communicateShares,
	actionOpts[1]: sumAndDistribute,
	actionOpts[2]: giveResult,
	actionOpts[3]: showShares,
	actionOpts[4]: showSums,
	actionOpts[5]: setSecret,
	actionOpts[6]: exitParty,
}

// -----------------------------------------------------------------------------
// Perform actions

func performActions(ctx context.Context, node peer.Peer) {
	prompt := &survey.Select{
		Message: "What do you want to do ?",
		Options: actionOpts,
	}

	var action string
	for ctx.Err() == nil {
		err := survey.AskOne(prompt, &action)
		if err != nil {
			printError(err)
			return
		}

		method := actions[action]
		err = method(ctx, node)
		if err == errExit {
			return
		}
		if err != nil {
			printError(err)
		}
	}
}

// -----------------------------------------------------------------------------
// CMD Actions

func communicateShares(ctx context.Context, node peer.Peer) error {
	err := node.CommunicateShares(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Shares sent to every peer")
	return nil
}

func sumAndDistribute(ctx context.Context, node peer.Peer) error {
	sum, err := node.SumAndDistribute(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Partial sum %d sent to every peer\n", sum)
	return nil
}

func giveResult(ctx context.Context, node peer.Peer) error {
	sum, err := node.GiveResult(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("The global sum is %d\n", sum)
	return nil
}

func showShares(ctx context.Context, node peer.Peer) error {
	fmt.Printf("Secret: %d\n", node.GetSecret())
	for _, rec := range node.GetShares() {
		fmt.Printf("  from %d: (%d, %d)\n", rec.Origin, rec.X, rec.Y)
	}
	return nil
}

func showSums(ctx context.Context, node peer.Peer) error {
	for _, rec := range node.GetSums() {
		fmt.Printf("  from %d: %d\n", rec.Origin, rec.Sum)
	}
	return nil
}

func setSecret(ctx context.Context, node peer.Peer) error {
	var answer string
	prompt := &survey.Input{Message: "New secret"}
	err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required))
	if err != nil {
		return err
	}

	n, err := strconv.ParseUint(answer, 10, 64)
	if err != nil {
		return xerrors.Errorf("invalid secret %q: %v", answer, err)
	}
	err = node.SetSecret(n)
	if err != nil {
		return err
	}
	fmt.Println("Secret updated, communicate shares again to use it")
	return nil
}

func exitParty(ctx context.Context, node peer.Peer) error {
	fmt.Println("bye 👋")
	return errExit
}

// -----------------------------------------------------------------------------
// Utils

func printError(err error) {
	fmt.Println("~~ERROR~~")
	fmt.Println(err)
}
