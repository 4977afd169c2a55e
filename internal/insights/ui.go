package insights

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type NodeType string

const (
	InsightsLayout  NodeType = "InsightsLayout"
	Section         NodeType = "Section"
	SummaryCard     NodeType = "SummaryCard"
	StatGrid        NodeType = "StatGrid"
	EntityTable     NodeType = "EntityTable"
	ObligationList  NodeType = "ObligationList"
	TagList         NodeType = "TagList"
	ActionList      NodeType = "ActionList"
	ConfidenceMeter NodeType = "ConfidenceMeter"
	ReviewQueue     NodeType = "ReviewQueue"
)

// NodeTypes is the closed set of renderable components.
var NodeTypes = []NodeType{
	InsightsLayout, Section, SummaryCard, StatGrid, EntityTable,
	ObligationList, TagList, ActionList, ConfidenceMeter, ReviewQueue,
}

// Props is implemented by exactly one struct per NodeType.
type Props interface {
	NodeType() NodeType
}

type LayoutProps struct {
	Title    string  `json:"title"`
	Subtitle *string `json:"subtitle"`
}

type SectionProps struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type SummaryCardProps struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type StatItem struct {
	Label string  `json:"label"`
	Value string  `json:"value"`
	Tone  *string `json:"tone"`
}

type StatGridProps struct {
	Items []StatItem `json:"items"`
}

type EntityTableProps struct {
	Title string   `json:"title"`
	Rows  []Entity `json:"rows"`
}

type ObligationListProps struct {
	Title string       `json:"title"`
	Items []Obligation `json:"items"`
}

type TagListProps struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

type ActionListProps struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

type ConfidenceMeterProps struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type ReviewQueueProps struct {
	Title string       `json:"title"`
	Items []ReviewItem `json:"items"`
}

func (*LayoutProps) NodeType() NodeType          { return InsightsLayout }
func (*SectionProps) NodeType() NodeType         { return Section }
func (*SummaryCardProps) NodeType() NodeType     { return SummaryCard }
func (*StatGridProps) NodeType() NodeType        { return StatGrid }
func (*EntityTableProps) NodeType() NodeType     { return EntityTable }
func (*ObligationListProps) NodeType() NodeType  { return ObligationList }
func (*TagListProps) NodeType() NodeType         { return TagList }
func (*ActionListProps) NodeType() NodeType      { return ActionList }
func (*ConfidenceMeterProps) NodeType() NodeType { return ConfidenceMeter }
func (*ReviewQueueProps) NodeType() NodeType     { return ReviewQueue }

// propsKeys lists the exact top-level keys each props shape carries.
var propsKeys = map[NodeType][]string{
	InsightsLayout:  {"title", "subtitle"},
	Section:         {"title", "description"},
	SummaryCard:     {"title", "text"},
	StatGrid:        {"items"},
	EntityTable:     {"title", "rows"},
	ObligationList:  {"title", "items"},
	TagList:         {"title", "tags"},
	ActionList:      {"title", "items"},
	ConfidenceMeter: {"label", "value"},
	ReviewQueue:     {"title", "items"},
}

func newProps(t NodeType) (Props, bool) {
	switch t {
	case InsightsLayout:
		return &LayoutProps{}, true
	case Section:
		return &SectionProps{}, true
	case SummaryCard:
		return &SummaryCardProps{}, true
	case StatGrid:
		return &StatGridProps{}, true
	case EntityTable:
		return &EntityTableProps{}, true
	case ObligationList:
		return &ObligationListProps{}, true
	case TagList:
		return &TagListProps{}, true
	case ActionList:
		return &ActionListProps{}, true
	case ConfidenceMeter:
		return &ConfidenceMeterProps{}, true
	case ReviewQueue:
		return &ReviewQueueProps{}, true
	}
	return nil, false
}

// UINode is one node of the render tree. Props always matches Type; leaves
// have an empty, never nil, Children list once decoded.
type UINode struct {
	Type     NodeType
	Props    Props
	Children []UINode
}

type UISpec struct {
	Root UINode `json:"root"`
}

// Node builds a node whose type is taken from props.
func Node(props Props, children ...UINode) UINode {
	if children == nil {
		children = []UINode{}
	}
	return UINode{Type: props.NodeType(), Props: props, Children: children}
}

var errNoProps = errors.New("node has no props")

// Validate walks the tree and checks every node's props against its type.
func (n *UINode) Validate() error {
	return n.validate("root")
}

func (n *UINode) validate(path string) error {
	if _, ok := newProps(n.Type); !ok {
		return fmt.Errorf("%s: unknown node type %q", path, n.Type)
	}
	if n.Props == nil {
		return fmt.Errorf("%s: %w", path, errNoProps)
	}
	if got := n.Props.NodeType(); got != n.Type {
		return fmt.Errorf("%s: %s node carries %s props", path, n.Type, got)
	}
	for i := range n.Children {
		if err := n.Children[i].validate(fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

type nodeJSON struct {
	Type     NodeType `json:"type"`
	Props    Props    `json:"props"`
	Children []UINode `json:"children"`
}

func (n UINode) MarshalJSON() ([]byte, error) {
	if n.Props == nil {
		return nil, fmt.Errorf("ui node %s: %w", n.Type, errNoProps)
	}
	if n.Props.NodeType() != n.Type {
		return nil, fmt.Errorf("ui node %s carries %s props", n.Type, n.Props.NodeType())
	}
	children := n.Children
	if children == nil {
		children = []UINode{}
	}
	return json.Marshal(nodeJSON{Type: n.Type, Props: n.Props, Children: children})
}

// UnmarshalJSON decodes props into the shape selected by "type". Missing
// keys, extra keys, or props belonging to another node type are errors.
func (n *UINode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ui node: %w", err)
	}
	if err := exactKeys(raw, []string{"type", "props", "children"}); err != nil {
		return fmt.Errorf("ui node: %w", err)
	}

	var t NodeType
	if err := json.Unmarshal(raw["type"], &t); err != nil {
		return fmt.Errorf("ui node type: %w", err)
	}
	props, ok := newProps(t)
	if !ok {
		return fmt.Errorf("ui node: unknown type %q", t)
	}
	if err := decodeProps(raw["props"], t, props); err != nil {
		return err
	}

	if !bytes.HasPrefix(bytes.TrimSpace(raw["children"]), []byte("[")) {
		return fmt.Errorf("ui node %s: children must be an array", t)
	}
	var children []UINode
	if err := json.Unmarshal(raw["children"], &children); err != nil {
		return err
	}
	if children == nil {
		children = []UINode{}
	}

	n.Type, n.Props, n.Children = t, props, children
	return nil
}

func decodeProps(data json.RawMessage, t NodeType, into Props) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil || keys == nil {
		return fmt.Errorf("ui node %s: props must be an object", t)
	}
	if err := exactKeys(keys, propsKeys[t]); err != nil {
		return fmt.Errorf("ui node %s props: %w", t, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("ui node %s props: %w", t, err)
	}
	return nil
}

func exactKeys(got map[string]json.RawMessage, want []string) error {
	var missing, extra []string
	for _, k := range want {
		if _, ok := got[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range got {
		found := false
		for _, w := range want {
			if k == w {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	switch {
	case len(missing) > 0:
		return fmt.Errorf("missing keys %s", strings.Join(missing, ", "))
	case len(extra) > 0:
		return fmt.Errorf("unexpected keys %s", strings.Join(extra, ", "))
	}
	return nil
}
