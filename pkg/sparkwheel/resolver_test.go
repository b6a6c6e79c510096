package sparkwheel

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestEngine(t *testing.T, tree map[string]interface{}) *Engine {
	e := New(Options{})
	if err := e.Merge(tree); err != nil {
		t.Fatalf("merge failed: %s", err)
	}
	return e
}

func TestScenario1SimpleReference(t *testing.T) {
	Convey("Base {a: 10, b: \"@a\"} resolves b to 10", t, func() {
		e := newTestEngine(t, map[string]interface{}{"a": 10, "b": "@a"})
		v, err := e.Resolve("b")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 10)
	})
}

func TestScenario2ExpressionWithReference(t *testing.T) {
	Convey("Base {x: 3, y: \"$@x * 2 + 1\"} resolves y to 7", t, func() {
		e := newTestEngine(t, map[string]interface{}{"x": 3, "y": "$@x * 2 + 1"})
		v, err := e.Resolve("y")
		So(err, ShouldBeNil)
		f, ok := v.(float64)
		So(ok, ShouldBeTrue)
		So(f, ShouldEqual, 7)
	})
}

func TestEmbeddedReferenceTextualSubstitution(t *testing.T) {
	Convey("an @ID embedded in a larger string is substituted textually, not resolved whole", t, func() {
		e := newTestEngine(t, map[string]interface{}{
			"a": "prod",
			"b": "host-@a-suffix",
		})
		v, err := e.Resolve("b")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "host-prod-suffix")
	})

	Convey("a longer identifier is substituted before a shorter prefix of it", t, func() {
		e := newTestEngine(t, map[string]interface{}{
			"a":  1,
			"ab": 2,
			"c":  "@ab-@a",
		})
		v, err := e.Resolve("c")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "2-1")
	})
}

func TestScenario7Cycle(t *testing.T) {
	Convey("Base {a: \"@b\", b: \"@a\"} fails resolve(a) with a cycle error", t, func() {
		e := newTestEngine(t, map[string]interface{}{"a": "@b", "b": "@a"})
		_, err := e.Resolve("a")
		So(err, ShouldNotBeNil)
		So(IsKind(err, CycleErrorKind), ShouldBeTrue)
	})
}

func TestScenario8MacroCopyBeforeResolution(t *testing.T) {
	Convey("%t copies t's raw mapping verbatim; @t instantiates it", t, func() {
		e := New(Options{})
		e.Registry().Register("T", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return kwargs, nil
		})
		tree := map[string]interface{}{
			"t": map[string]interface{}{"_target_": "T", "x": 1},
			"c": "%t",
			"r": "@t",
		}
		err := e.Merge(tree)
		So(err, ShouldBeNil)

		raw, err := e.Resolve("c")
		So(err, ShouldBeNil)
		So(raw, ShouldResemble, map[string]interface{}{"_target_": "T", "x": 1})

		instance, err := e.Resolve("r")
		So(err, ShouldBeNil)
		So(instance, ShouldResemble, map[string]interface{}{"x": 1})
	})
}

func TestP1IdempotenceOfResolution(t *testing.T) {
	Convey("resolve(X) called twice returns identical values", t, func() {
		e := newTestEngine(t, map[string]interface{}{"a": 10, "b": "@a"})
		v1, err := e.Resolve("b")
		So(err, ShouldBeNil)
		v2, err := e.Resolve("b")
		So(err, ShouldBeNil)
		So(v1, ShouldEqual, v2)
	})
}

func TestP6RelativeIdentifierEquivalence(t *testing.T) {
	Convey("@::sibling inside a::b matches absolute @a::sibling from top-level", t, func() {
		e := newTestEngine(t, map[string]interface{}{
			"a": map[string]interface{}{
				"sibling": 42,
				"b":       "@::sibling",
			},
		})
		viaRelative, err := e.Resolve("a::b")
		So(err, ShouldBeNil)
		So(viaRelative, ShouldEqual, 42)

		viaAbsolute, err := e.Resolve("a::sibling")
		So(err, ShouldBeNil)
		So(viaAbsolute, ShouldEqual, 42)
		So(viaRelative, ShouldEqual, viaAbsolute)
	})
}

func TestMissingReferencePolicy(t *testing.T) {
	Convey("an unknown reference fails resolution by default", t, func() {
		e := newTestEngine(t, map[string]interface{}{"b": "@nope"})
		_, err := e.Resolve("b")
		So(err, ShouldNotBeNil)
	})

	Convey("AllowMissingReference degrades to nil with a warning", t, func() {
		e := New(Options{ResolveOptions: ResolveOptions{AllowMissingReference: true}})
		So(e.Merge(map[string]interface{}{"b": "@nope"}), ShouldBeNil)
		v, err := e.Resolve("b")
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)
	})
}

func TestDisableExpressions(t *testing.T) {
	Convey("DisableExpressions returns a $ marker as its literal source string", t, func() {
		e := New(Options{ResolveOptions: ResolveOptions{DisableExpressions: true}})
		So(e.Merge(map[string]interface{}{"x": 3, "y": "$@x * 2"}), ShouldBeNil)
		v, err := e.Resolve("y")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "$@x * 2")
	})
}

func TestUpdateInvalidatesCache(t *testing.T) {
	Convey("Update rebuilds the graph and applies override operators (P8)", t, func() {
		e := newTestEngine(t, map[string]interface{}{
			"model": map[string]interface{}{"layers": 2},
		})
		before, err := e.Resolve("model::layers")
		So(err, ShouldBeNil)
		So(before, ShouldEqual, 2)

		So(e.Update([]string{"model::layers=8"}), ShouldBeNil)

		after, err := e.Resolve("model::layers")
		So(err, ShouldBeNil)
		So(after, ShouldEqual, 8)
	})
}
