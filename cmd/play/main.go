package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tengen/game"
	"tengen/inference"
	"tengen/minigo"
	"tengen/model"
	"tengen/policy"
	"tengen/selfplay"
)

func main() {
	boardSize := flag.Int("board-size", 7, "Board size")
	checkpointPath := flag.String("checkpoint", "checkpoints/checkpoint_7x7.onnx", "Checkpoint weights to play against")
	agent := flag.String("agent", "mcts", "Checkpoint agent kind: mcts or ac")
	opponent := flag.String("opponent", "human", "Your side: human, random, greedy or smart-greedy")
	searches := flag.Int("searches", 0, "Two-ply deepening budget for the mcts agent")
	humanWhite := flag.Bool("white", false, "Play white instead of black")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	ckpt, err := model.NewOnnxModel(model.OnnxConfig{
		Name:      "Checkpoint",
		BoardSize: *boardSize,
		ModelPath: *checkpointPath,
		Inference: inference.Config{BoardSize: *boardSize},
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("load checkpoint")
	}
	defer ckpt.Close()
	log.Info().Str("path", *checkpointPath).Msg("loaded model")

	var checkpointPi policy.Policy
	switch *agent {
	case "mcts":
		checkpointPi = policy.NewValue("Checkpoint", ckpt.ValueFunc(), *searches, 0, 0)
	case "ac":
		checkpointPi = policy.NewActorCritic("Checkpoint", ckpt.PolicyFunc())
	default:
		log.Fatal().Str("agent", *agent).Msg("unknown agent kind")
	}

	env := minigo.NewEnv(*boardSize)

	var playerPi policy.Policy
	switch *opponent {
	case "human":
		playerPi = policy.NewHuman(readMove)
	case "random":
		playerPi = policy.NewRandom()
	case "greedy":
		playerPi = policy.NewGreedy(env.Rules())
	case "smart-greedy":
		playerPi = policy.NewSmartGreedy(env.Rules())
	default:
		log.Fatal().Str("opponent", *opponent).Msg("unknown opponent kind")
	}

	black, white := playerPi, checkpointPi
	if *humanWhite {
		black, white = checkpointPi, playerPi
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	winner, err := selfplay.Pit(ctx, env, black, white, rng, func(env game.Environment) {
		fmt.Println(minigo.Render(env.State()))
	})
	if err != nil {
		log.Fatal().Err(err).Msg("game failed")
	}

	switch {
	case winner > 0:
		fmt.Println("Black wins")
	case winner < 0:
		fmt.Println("White wins")
	default:
		fmt.Println("Tie")
	}
}

// readMove asks for a move on stdin as "row col", or "pass".
func readMove(env game.Environment) (int, error) {
	fmt.Print("move (row col, or pass): ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimSpace(line)
	if line == "pass" {
		return env.State().PassAction(), nil
	}

	var row, col int
	if _, err := fmt.Sscanf(line, "%d %d", &row, &col); err != nil {
		fmt.Println("could not read that, try again")
		return -1, nil
	}
	return env.Rules().CoordToAction(env.State(), row, col), nil
}
