package lang

// Value returns a representation of the tree rooted at n built from maps,
// slices and strings, suitable for YAML or JSON encoding.
func Value(n Node) any {
	if n == nil {
		return nil
	}

	m := map[string]any{"pos": n.Position().String()}

	switch n := n.(type) {
	case *Sequence:
		items := make([]any, 0, len(n.Items))
		for _, it := range n.Items {
			items = append(items, Value(it))
		}

		m["type"] = "sequence"
		m["items"] = items

	case *Tag:
		m["type"] = "tag"
		m["brief"] = briefValue(n.Brief)

		if len(n.Attrs) > 0 {
			attrs := make([]any, 0, len(n.Attrs))
			for _, a := range n.Attrs {
				attrs = append(attrs, map[string]any{
					"key":     a.Key,
					"value":   a.Value,
					"literal": a.Literal,
				})
			}

			m["attrs"] = attrs
		}

		if n.Tail != TailNone {
			m["tail"] = n.Tail.String()
		}

		if n.Tail == TailText {
			m["text"] = n.Text
		}

		if n.Body != nil {
			m["body"] = Value(n.Body)
		}

	case *Statement:
		m["type"] = "statement"
		m["flag"] = n.Flag.String()
		m["text"] = n.Text

		if n.Body != nil {
			m["body"] = Value(n.Body)
		}

	case *Text:
		m["type"] = "text"
		m["text"] = n.Text

		if n.Body != nil {
			m["body"] = Value(n.Body)
		}

	case *Raw:
		m["type"] = "raw"
		m["text"] = n.Text
	}

	return m
}

func briefValue(b Brief) []any {
	items := make([]any, 0, len(b))
	for _, it := range b {
		items = append(items, it.Mark.String()+it.Name)
	}

	return items
}
