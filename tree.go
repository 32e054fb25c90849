// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package loopprof

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// Node is an [Event] within the causal tree built by [BuildTree].
type Node struct {
	Event    *Event
	Children []*Node
}

// BuildTree arranges events into a forest, by parent link. Children keep the
// order of the input (creation order, for [Proxy.Events]). Events whose
// parent is not part of the input are roots.
func BuildTree(events []*Event) []*Node {
	nodes := make(map[*Event]*Node, len(events))
	for _, ev := range events {
		if ev != nil {
			nodes[ev] = &Node{Event: ev}
		}
	}

	var roots []*Node
	for _, ev := range events {
		if ev == nil {
			continue
		}
		node := nodes[ev]
		if parent, ok := nodes[ev.Parent()]; ok && parent != node {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}

	return roots
}

// Walk visits the node then its descendants, depth first. Returning false
// from fn skips the children of that node.
func (x *Node) Walk(fn func(node *Node, depth int) bool) {
	x.walk(fn, 0)
}

func (x *Node) walk(fn func(node *Node, depth int) bool, depth int) {
	if !fn(x, depth) {
		return
	}
	for _, child := range x.Children {
		child.walk(fn, depth+1)
	}
}

// FormatTree writes an indented, human-readable rendering of the forest.
func FormatTree(w io.Writer, roots []*Node) error {
	bw := bufio.NewWriter(w)
	for _, root := range roots {
		root.Walk(func(node *Node, depth int) bool {
			ev := node.Event
			bw.WriteString(strings.Repeat(`  `, depth))
			bw.WriteString(ev.String())
			if ev.Status().IsTerminal() {
				bw.WriteString(` `)
				bw.WriteString(ev.Duration().Round(time.Microsecond).String())
			}
			if err := ev.Err(); err != nil {
				bw.WriteString(`: `)
				bw.WriteString(err.Error())
			}
			bw.WriteByte('\n')
			return true
		})
	}
	return bw.Flush()
}
