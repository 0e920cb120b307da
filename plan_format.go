package visualswe

import (
	"fmt"
	"strings"
)

// formatAsText formats the plan as an ASCII tree.
func (pb *PlanBuilder) formatAsText(plan *PlanNode) string {
	var sb strings.Builder
	sb.WriteString("Enrichment Plan (estimated)\n")
	pb.formatNodeAsText(plan, "", true, &sb)
	return sb.String()
}

// formatNodeAsText recursively formats a node and its children as text.
func (pb *PlanBuilder) formatNodeAsText(node *PlanNode, prefix string, isLast bool, sb *strings.Builder) {
	connector := "├─ "
	if isLast {
		connector = "└─ "
	}
	if prefix == "" {
		connector = ""
	}

	sb.WriteString(fmt.Sprintf("%s%s%s\n", prefix, connector, pb.formatNodeInfo(node)))

	childPrefix := prefix
	if prefix == "" {
		// First level children get "  " as prefix to properly indent them
		childPrefix = "  "
	} else {
		if isLast {
			childPrefix += "   "
		} else {
			childPrefix += "│  "
		}
	}

	for i, child := range node.Children {
		pb.formatNodeAsText(child, childPrefix, i == len(node.Children)-1, sb)
	}
}

// formatNodeInfo formats information for a single node.
func (pb *PlanBuilder) formatNodeInfo(node *PlanNode) string {
	parts := []string{string(node.Type)}
	if node.Stage != "" {
		parts = append(parts, fmt.Sprintf(`"%s"`, node.Stage))
	}

	var details []string
	if node.Model != "" {
		details = append(details, fmt.Sprintf("model=%s", node.Model))
	}
	if node.Instances > 0 {
		details = append(details, fmt.Sprintf("instances=%d", node.Instances))
	}
	if node.Calls > 0 {
		details = append(details, fmt.Sprintf("calls=%d", node.Calls))
	}
	if node.MediaItems > 0 {
		details = append(details, fmt.Sprintf("media=%d", node.MediaItems))
	}
	if node.MissingMedia > 0 {
		details = append(details, fmt.Sprintf("missing=%d", node.MissingMedia))
	}
	if node.InputTokens > 0 || node.OutputTokens > 0 {
		if node.OutputTokens > 0 {
			details = append(details, fmt.Sprintf("tokens(in=%d,out=%d)", node.InputTokens, node.OutputTokens))
		} else {
			details = append(details, fmt.Sprintf("tokens(in=%d)", node.InputTokens))
		}
	}
	if node.ActCost != nil {
		details = append(details, fmt.Sprintf("$%.6f", *node.ActCost))
	}

	if len(details) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(details, ", ")))
	}
	return strings.Join(parts, " ")
}

// formatAsJSON formats the plan with the same encoder settings as corpus files.
func (pb *PlanBuilder) formatAsJSON(plan *PlanNode) (string, error) {
	b, err := MarshalIndent(plan)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
