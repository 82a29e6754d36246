package diag

import (
	"io"
	"strconv"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"

	"github.com/dcshock/sdkswitch/pipeline"
)

// EndVertex is the terminal vertex every profile graph ends in.
const EndVertex = "(completed)"

const maxRGB = 240

// ProfileGraph builds the step chain of p: one vertex per step id plus
// EndVertex, and an edge from each step to the next labelled with the
// settle that separates them. Vertices are filled by settle kind.
func ProfileGraph(p *pipeline.Profile) (graph.Graph[string, string], error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid profile")
	}
	g := graph.New(graph.StringHash, graph.Directed())

	maxTicks := 0
	for _, s := range p.Steps {
		if s.Settle.Kind == pipeline.SettleTicks && s.Settle.Ticks > maxTicks {
			maxTicks = s.Settle.Ticks
		}
	}

	for i, s := range p.Steps {
		fill, err := SettleColor(s.Settle, maxTicks)
		if err != nil {
			return nil, err
		}
		err = g.AddVertex(s.ID,
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", fill),
			graph.VertexAttribute("xlabel", strconv.Itoa(i)),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add vertex %s", s.ID)
		}
	}
	if err := g.AddVertex(EndVertex, graph.VertexAttribute("shape", "doublecircle")); err != nil {
		return nil, errors.Wrap(err, "unable to add end vertex")
	}

	for i, s := range p.Steps {
		next := EndVertex
		if i+1 < len(p.Steps) {
			next = p.Steps[i+1].ID
		}
		err := g.AddEdge(s.ID, next,
			graph.EdgeAttribute("label", s.Settle.String()),
			graph.EdgeWeight(settleWeight(s.Settle)),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add edge from %s to %s", s.ID, next)
		}
	}
	return g, nil
}

// DrawProfile writes the DOT description of p's step graph to w.
func DrawProfile(w io.Writer, p *pipeline.Profile) error {
	g, err := ProfileGraph(p)
	if err != nil {
		return err
	}
	err = draw.DOT(g, w,
		draw.GraphAttribute("label", p.Name+" ("+p.Group.String()+")"),
		draw.GraphAttribute("rankdir", "LR"),
	)
	if err != nil {
		return errors.Wrapf(err, "unable to draw profile %s", p.Name)
	}
	return nil
}

// SettleColor is the fill of a step with settle s: grey for none, red for a
// restart, and blue to red for tick settles relative to maxTicks.
func SettleColor(s pipeline.Settle, maxTicks int) (string, error) {
	var (
		c   *colors.RGBColor
		err error
	)
	switch s.Kind {
	case pipeline.SettleRestart:
		c, err = colors.RGB(255, 0, 0)
	case pipeline.SettleTicks:
		fraction := 1.0
		if maxTicks > 1 {
			fraction = float64(s.Ticks-1) / float64(maxTicks-1)
		}
		red := maxRGB * fraction
		blue := maxRGB - red
		c, err = colors.RGB(uint8(red), 0, uint8(blue))
	default:
		c, err = colors.RGB(211, 211, 211)
	}
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}
	return c.ToHEX().String(), nil
}

func settleWeight(s pipeline.Settle) int {
	switch s.Kind {
	case pipeline.SettleTicks:
		return s.Ticks
	case pipeline.SettleRestart:
		return 100
	default:
		return 0
	}
}
