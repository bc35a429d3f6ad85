package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/domain/session"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
)

// DebateConfig configures a debate round: K participants argue over R
// rounds, after which a judge selects a winning position. Judge names a
// single judge agent, treated as a jury of one; Jury names a panel and
// takes precedence over Judge when both are set. With neither set, the
// winner falls back to majority consensus over the participants'
// own position-tagged arguments.
type DebateConfig struct {
	Rounds int
	Judge  string
	Jury   []string
}

// Argument is one agent's contribution in a single debate round.
type Argument struct {
	AgentID  string
	Round    int
	Position string
	Text     string
}

// DebateOutcome is the judged result of a full debate.
type DebateOutcome struct {
	Winner        string
	WinningAgent  string
	Confidence    float64
	Arguments     []Argument
}

// RunDebate assigns alternating pro/con positions to participants, runs
// cfg.Rounds of argument exchange, and judges the outcome via majority
// consensus over position-tagged opinions.
func RunDebate(ctx context.Context, backends map[string]execbackend.Backend, participants []string, taskDesc string, cfg DebateConfig) (DebateOutcome, error) {
	if len(participants) < 2 {
		return DebateOutcome{}, orcherr.New(orcherr.KindValidation, "debate requires at least 2 participants")
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = 1
	}

	positions := assignPositions(participants)

	var all []Argument
	for round := 1; round <= cfg.Rounds; round++ {
		roundArgs, err := conductDebateRound(ctx, backends, participants, positions, taskDesc, round, all)
		if err != nil {
			return DebateOutcome{}, err
		}
		all = append(all, roundArgs...)
	}

	jury := cfg.Jury
	if len(jury) == 0 && cfg.Judge != "" {
		jury = []string{cfg.Judge}
	}

	if len(jury) > 0 {
		return judgeByJury(ctx, backends, jury, taskDesc, all)
	}
	return judgeDebate(all)
}

func assignPositions(participants []string) map[string]string {
	labels := []string{"pro", "con"}
	out := make(map[string]string, len(participants))
	for i, id := range participants {
		out[id] = labels[i%len(labels)]
	}
	return out
}

func conductDebateRound(ctx context.Context, backends map[string]execbackend.Backend, participants []string, positions map[string]string, taskDesc string, round int, prior []Argument) ([]Argument, error) {
	var roundArgs []Argument
	for _, agentID := range participants {
		backend := backends[agentID]
		position := positions[agentID]
		rebuttal := rebuttalTargets(prior, position)

		if backend == nil {
			text := fmt.Sprintf("round %d argument from %s (%s) on %s", round, agentID, position, taskDesc)
			if rebuttal != "" {
				text = fmt.Sprintf("%s, rebutting: %s", text, rebuttal)
			}
			roundArgs = append(roundArgs, Argument{AgentID: agentID, Round: round, Position: position, Text: text})
			continue
		}

		desc := fmt.Sprintf("debate round %d, position %s, topic: %s", round, position, taskDesc)
		if rebuttal != "" {
			desc = fmt.Sprintf("%s. Respond to the opposing arguments made so far: %s", desc, rebuttal)
		}
		resp, err := backend.Execute(ctx, execbackend.Request{AgentID: agentID, Description: desc})
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindAgent, "debate round execution failed", err)
		}
		roundArgs = append(roundArgs, Argument{AgentID: agentID, Round: round, Position: position, Text: fmt.Sprint(resp.Output["text"])})
	}
	return roundArgs, nil
}

// rebuttalTargets joins the text of every prior-round argument taken by a
// position other than ownPosition, so a later round's participant argues
// against what the opposing side has actually said rather than restating
// its own position in isolation.
func rebuttalTargets(prior []Argument, ownPosition string) string {
	var opposing []string
	for _, a := range prior {
		if a.Position != ownPosition {
			opposing = append(opposing, fmt.Sprintf("[%s, round %d] %s", a.AgentID, a.Round, a.Text))
		}
	}
	return strings.Join(opposing, " | ")
}

// judgeDebate tallies arguments per position and resolves the winner by
// majority consensus, deterministic tie-break included.
func judgeDebate(args []Argument) (DebateOutcome, error) {
	opinions := make([]session.Opinion, 0, len(args))
	for _, a := range args {
		opinions = append(opinions, session.Opinion{
			AgentID:  a.AgentID,
			Decision: session.Decision{Kind: session.DecisionScalar, Key: a.Position, Value: a.Position},
		})
	}

	result, err := NewConsensus().Resolve(VotingMajority, opinions, 0)
	if err != nil {
		return DebateOutcome{}, err
	}

	winningAgent := ""
	for _, a := range args {
		if a.Position == result.Decision.Key {
			winningAgent = a.AgentID
			break
		}
	}

	return DebateOutcome{
		Winner:       result.Decision.Key,
		WinningAgent: winningAgent,
		Confidence:   result.Confidence,
		Arguments:    args,
	}, nil
}

// judgeByJury has each juror cast one vote over the full transcript and
// resolves the winner by majority among those votes, rather than
// tallying the participants' own arguments. Each juror's verdict is
// appended to the returned transcript, so Arguments has length
// len(participants)*rounds + len(jury).
func judgeByJury(ctx context.Context, backends map[string]execbackend.Backend, jury []string, taskDesc string, transcript []Argument) (DebateOutcome, error) {
	opinions := make([]session.Opinion, 0, len(jury))
	verdicts := make([]Argument, 0, len(jury))

	for i, jurorID := range jury {
		vote, text, err := castJuryVote(ctx, backends[jurorID], jurorID, taskDesc, transcript, i)
		if err != nil {
			return DebateOutcome{}, err
		}
		verdicts = append(verdicts, Argument{AgentID: jurorID, Round: 0, Position: vote, Text: text})
		opinions = append(opinions, session.Opinion{
			AgentID:  jurorID,
			Decision: session.Decision{Kind: session.DecisionScalar, Key: vote, Value: vote},
		})
	}

	result, err := NewConsensus().Resolve(VotingMajority, opinions, 0)
	if err != nil {
		return DebateOutcome{}, err
	}

	winningAgent := ""
	for _, a := range transcript {
		if a.Position == result.Decision.Key {
			winningAgent = a.AgentID
			break
		}
	}

	return DebateOutcome{
		Winner:       result.Decision.Key,
		WinningAgent: winningAgent,
		Confidence:   result.Confidence,
		Arguments:    append(transcript, verdicts...),
	}, nil
}

// castJuryVote asks one juror to deliver a pro/con verdict over the
// debate transcript. Without a bound backend it falls back to
// alternating pro/con by jury seat, the same synthesized-output
// convention conductDebateRound uses when no backend is available.
func castJuryVote(ctx context.Context, backend execbackend.Backend, jurorID, taskDesc string, transcript []Argument, seat int) (vote, text string, err error) {
	if backend == nil {
		labels := []string{"pro", "con"}
		vote = labels[seat%len(labels)]
		return vote, fmt.Sprintf("juror %s votes %s on %s after reviewing %d arguments", jurorID, vote, taskDesc, len(transcript)), nil
	}

	resp, execErr := backend.Execute(ctx, execbackend.Request{
		AgentID:     jurorID,
		Description: fmt.Sprintf("serve as judge on the debate over %q and deliver a verdict of pro or con", taskDesc),
	})
	if execErr != nil {
		return "", "", orcherr.Wrap(orcherr.KindAgent, "jury verdict execution failed", execErr)
	}
	text = fmt.Sprint(resp.Output["text"])
	vote = "pro"
	if strings.Contains(strings.ToLower(text), "con") {
		vote = "con"
	}
	return vote, text, nil
}
