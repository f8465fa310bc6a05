package query

import "testing"

func TestParseSimpleLeaf(t *testing.T) {
	node, err := Parse("id=42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Kind != NodeLeaf || node.Field != "id" || node.Op != OpExact || node.Value != "42" {
		t.Fatalf("unexpected node: %+v", node)
	}
}

func TestParseLongestFieldMatchWins(t *testing.T) {
	node, err := Parse("author id = 5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Field != "author id" {
		t.Fatalf("expected field %q, got %q", "author id", node.Field)
	}
}

func TestParseAndGroup(t *testing.T) {
	node, err := Parse("chapters > 10, likes > 100")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Kind != NodeAnd || len(node.Children) != 2 {
		t.Fatalf("expected 2-child AND node, got %+v", node)
	}
}

func TestParseOrGroup(t *testing.T) {
	node, err := Parse("chapters > 10 | likes > 100")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Kind != NodeOr || len(node.Children) != 2 {
		t.Fatalf("expected 2-child OR node, got %+v", node)
	}
}

func TestParseAndBindsTighterThanOr(t *testing.T) {
	node, err := Parse("chapters > 10, likes > 100 | author = Fluttershy")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Kind != NodeOr || len(node.Children) != 2 {
		t.Fatalf("expected top-level OR, got %+v", node)
	}
	if node.Children[0].Kind != NodeAnd {
		t.Fatalf("expected first OR child to be an AND group, got %+v", node.Children[0])
	}
	if node.Children[1].Kind != NodeLeaf || node.Children[1].Field != "author" {
		t.Fatalf("expected second OR child to be an author leaf, got %+v", node.Children[1])
	}
}

func TestParseNegation(t *testing.T) {
	node, err := Parse("!(id=1)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Kind != NodeNot || node.Child.Field != "id" {
		t.Fatalf("unexpected node: %+v", node)
	}
}

func TestParseEscapedValue(t *testing.T) {
	node, err := Parse(`title : Twilight\, Sparkle`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Value != "Twilight, Sparkle" {
		t.Fatalf("unexpected unescaped value %q", node.Value)
	}
}

func TestParseUnrecognizedField(t *testing.T) {
	if _, err := Parse("nonsense=1"); err == nil {
		t.Fatal("expected error for unrecognized field")
	}
}

func TestParseUnclosedParen(t *testing.T) {
	if _, err := Parse("(id=1"); err == nil {
		t.Fatal("expected error for unclosed parenthesis")
	}
}

func TestParseTrailingGarbage(t *testing.T) {
	if _, err := Parse("id=1 extra"); err == nil {
		t.Fatal("expected error for trailing garbage")
	}
}
