package lang

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nathoo/questscript/engine/state"
	"github.com/nathoo/questscript/types"
)

type animal struct{ name string }
type dog struct{ animal }

func testClasses(t *testing.T) *Classes {
	t.Helper()
	c := NewClasses()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(c.Register(ClassInfo{
		CodeName: "number",
		Is:       func(v any) bool { _, ok := v.(float64); return ok },
		Parse: func(s string) (any, bool) {
			f, err := strconv.ParseFloat(s, 64)
			return f, err == nil
		},
		ToString: func(v any) string { return strconv.FormatFloat(v.(float64), 'f', -1, 64) },
	}))
	must(c.Register(ClassInfo{
		CodeName: "string",
		Name:     "text",
		Plural:   "texts",
		Is:       func(v any) bool { _, ok := v.(string); return ok },
	}))
	must(c.Register(ClassInfo{
		CodeName: "animal",
		Is: func(v any) bool {
			switch v.(type) {
			case animal, dog:
				return true
			}
			return false
		},
		ToString: func(v any) string {
			if d, ok := v.(dog); ok {
				return d.name
			}
			return v.(animal).name
		},
	}))
	must(c.Register(ClassInfo{
		CodeName: "dog",
		Parent:   "animal",
		Is:       func(v any) bool { _, ok := v.(dog); return ok },
		Parse: func(s string) (any, bool) {
			if s == "rex" {
				return dog{animal{"rex"}}, true
			}
			return nil, false
		},
	}))
	c.AddConverter("animal", "string", func(v any) (any, bool) {
		return c.ToString(v), true
	})
	return c
}

func TestClasses_RegisterErrors(t *testing.T) {
	c := testClasses(t)
	bad := []ClassInfo{
		{CodeName: "", Is: func(any) bool { return true }},
		{CodeName: "number", Is: func(any) bool { return true }},
		{CodeName: "cat", Parent: "mammal", Is: func(any) bool { return true }},
		{CodeName: "cat"},
	}
	for _, ci := range bad {
		if err := c.Register(ci); err == nil {
			t.Errorf("Register(%q) expected error", ci.CodeName)
		}
	}
}

func TestClasses_Lookup(t *testing.T) {
	c := testClasses(t)
	tests := []struct {
		name   string
		code   string
		plural bool
	}{
		{"number", "number", false},
		{"numbers", "number", true},
		{"text", "string", false},
		{"strings", "string", true},
		{"Texts", "string", true},
		{"dogs", "dog", true},
	}
	for _, tt := range tests {
		ci, plural, ok := c.Lookup(tt.name)
		if !ok {
			t.Errorf("Lookup(%q) not found", tt.name)
			continue
		}
		if ci.CodeName != tt.code || plural != tt.plural {
			t.Errorf("Lookup(%q) = %s, %v; want %s, %v", tt.name, ci.CodeName, plural, tt.code, tt.plural)
		}
	}
	if _, _, ok := c.Lookup("cats"); ok {
		t.Error("Lookup(cats) should fail")
	}
}

func TestClasses_Hierarchy(t *testing.T) {
	c := testClasses(t)
	if !c.IsSubtype("dog", "animal") || !c.IsSubtype("dog", ObjectType) {
		t.Error("dog should be an animal and an object")
	}
	if c.IsSubtype("animal", "dog") {
		t.Error("animal is not a dog")
	}
	if got := c.Supertype("dog", "animal"); got != "animal" {
		t.Errorf("Supertype(dog, animal) = %q", got)
	}
	if got := c.Supertype("dog", "number"); got != ObjectType {
		t.Errorf("Supertype(dog, number) = %q", got)
	}
}

func TestClasses_Convert(t *testing.T) {
	c := testClasses(t)
	if !c.CanConvert("dog", "string") {
		t.Error("dog converts to string through the animal converter")
	}
	if c.CanConvert("number", "dog") {
		t.Error("no converter from number to dog")
	}
	v, ok := c.Convert(dog{animal{"rex"}}, "string")
	if !ok || v != "rex" {
		t.Errorf("Convert = %v, %v", v, ok)
	}
	if got := c.ClassOf(dog{}); got.CodeName != "dog" {
		t.Errorf("ClassOf(dog) = %q", got.CodeName)
	}
}

func TestConvertExpression(t *testing.T) {
	c := testClasses(t)
	env := NewEnv(types.Event{}, state.NewState())

	u := &UnparsedLiteral{Text: "rex"}
	got := c.ConvertExpression(u, "dog")
	if got == nil || got.ReturnType() != "dog" {
		t.Fatalf("unparsed literal did not become a dog: %v", got)
	}
	if c.ConvertExpression(&UnparsedLiteral{Text: "fido"}, "dog") != nil {
		t.Error("fido is not a dog literal")
	}

	if got := c.ConvertExpression(&UnparsedLiteral{Text: "2.5"}, ObjectType); got == nil || got.ReturnType() != "number" {
		t.Errorf("object conversion should parse 2.5 as a number, got %v", got)
	}
	if got := c.ConvertExpression(&UnparsedLiteral{Text: "hello"}, ObjectType); got == nil {
		t.Error("object conversion should keep unparsable text")
	} else if _, ok := got.(*UnparsedLiteral); !ok {
		t.Errorf("unparsable text became %T", got)
	}

	n := NewLiteral("number", "2", 2.0)
	if c.ConvertExpression(n, "dog") != nil {
		t.Error("numbers do not convert to dogs")
	}

	list := NewList([]Expression{u, &UnparsedLiteral{Text: "rex"}}, true, ObjectType)
	cl := c.ConvertExpression(list, "animal")
	if cl == nil {
		t.Fatal("list conversion failed")
	}
	if _, ok := cl.(Literal); !ok {
		t.Error("converted literal list should stay a literal")
	}
	if got := len(cl.All(env)); got != 2 {
		t.Errorf("len(All) = %d, want 2", got)
	}

	d := NewLiteral("dog", "rex", dog{animal{"rex"}})
	s := c.ConvertExpression(d, "string")
	if diff := cmp.Diff([]any{"rex"}, s.All(env)); diff != "" {
		t.Errorf("converted values mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertExpression_Supertype(t *testing.T) {
	c := testClasses(t)
	env := NewEnv(types.Event{}, state.NewState())

	rex := NewLiteral("animal", "rex", dog{animal{"rex"}})
	got := c.ConvertExpression(rex, "dog")
	if got == nil {
		t.Fatal("an animal expression should be accepted where a dog is wanted")
	}
	if got.ReturnType() != "dog" {
		t.Errorf("ReturnType = %q, want dog", got.ReturnType())
	}
	if diff := cmp.Diff([]any{dog{animal{"rex"}}}, got.All(env), cmp.AllowUnexported(dog{}, animal{})); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	cat := NewLiteral("animal", "tom", animal{"tom"})
	if got := c.ConvertExpression(cat, "dog"); got == nil || len(got.All(env)) != 0 {
		t.Errorf("an animal that is not a dog should be dropped at run time, got %v", got)
	}
}

func TestKleenean(t *testing.T) {
	if True.And(Unknown) != Unknown || False.Or(Unknown) != Unknown {
		t.Error("three-valued logic broken")
	}
	if True.Merge(False) != Unknown || True.Merge(True) != True {
		t.Error("Merge broken")
	}
	if KleeneanOf(false) != False {
		t.Error("KleeneanOf(false)")
	}
}

func TestCheck(t *testing.T) {
	env := NewEnv(types.Event{}, state.NewState())
	one := NewLiteral("number", "1", 1.0)
	two := NewLiteral("number", "2", 2.0)
	isOne := func(v any) bool { return v == 1.0 }

	and := NewList([]Expression{one, two}, true, "number")
	or := NewList([]Expression{one, two}, false, "number")
	if Check(and, env, isOne) {
		t.Error("and-list: 2 is not 1")
	}
	if !Check(or, env, isOne) {
		t.Error("or-list: 1 is 1")
	}
	if Check(NewLiteral("number", ""), env, isOne) {
		t.Error("no values never pass")
	}
	if or.IsSingle() != true || and.IsSingle() != false {
		t.Error("IsSingle on lists")
	}
}

func TestVariables(t *testing.T) {
	c := testClasses(t)
	env := NewEnv(types.Event{}, state.NewState())
	name := NewVariableString([]StringPart{{Text: "score::"}, {Expr: NewLiteral("number", "3", 3.0)}}, c, "score::%3%")
	v := NewVariable(name)
	v.Set(env, []any{10.0})
	if got, ok := env.World.Var("score::3"); !ok || got != 10.0 {
		t.Errorf("global var = %v, %v", got, ok)
	}

	local := NewVariable(NewVariableString([]StringPart{{Text: "_tmp"}}, c, "_tmp"))
	local.Set(env, []any{"x"})
	if diff := cmp.Diff([]any{"x"}, local.All(env)); diff != "" {
		t.Errorf("local mismatch (-want +got):\n%s", diff)
	}
	if _, ok := env.World.Var("_tmp"); ok {
		t.Error("local variable leaked into globals")
	}

	list := NewVariable(NewVariableString([]StringPart{{Text: "names::*"}}, c, "names::*"))
	if list.IsSingle() {
		t.Error("list variables are not single")
	}
	list.Set(env, []any{"a", "b"})
	if diff := cmp.Diff([]any{"a", "b"}, list.All(env)); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestVariableString_Eval(t *testing.T) {
	c := testClasses(t)
	env := NewEnv(types.Event{}, state.NewState())
	nums := NewList([]Expression{NewLiteral("number", "1", 1.0), NewLiteral("number", "2.5", 2.5)}, true, "number")
	s := NewVariableString([]StringPart{{Text: "got "}, {Expr: nums}, {Text: "!"}}, c, "got %1 and 2.5%!")
	if got := s.Eval(env); got != "got 1 and 2.5!" {
		t.Errorf("Eval = %q", got)
	}
}
