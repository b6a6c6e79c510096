package sparkwheel

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEngineLoadStrictKeysRejectsDuplicates(t *testing.T) {
	Convey("StrictKeys fails a file that repeats a mapping key", t, func() {
		e := New(Options{ResolveOptions: ResolveOptions{StrictKeys: true}})
		_, err := e.Load([]byte("model:\n  layers: 2\n  layers: 4\n"))
		So(err, ShouldNotBeNil)
		So(IsKind(err, ParseErrorKind), ShouldBeTrue)
	})

	Convey("without StrictKeys a duplicate key is silently resolved to the last value", t, func() {
		e := New(Options{})
		tree, err := e.Load([]byte("model:\n  layers: 2\n  layers: 4\n"))
		So(err, ShouldBeNil)
		model := tree["model"].(map[string]interface{})
		So(model["layers"], ShouldEqual, 4)
	})
}

func TestEngineLoadRoundTrips(t *testing.T) {
	Convey("Load parses YAML bytes into a normalized tree usable by Merge", t, func() {
		e := New(Options{})
		tree, err := e.Load([]byte("a: 1\nb: \"@a\"\n"))
		So(err, ShouldBeNil)
		So(tree["a"], ShouldEqual, 1)

		So(e.Merge(tree), ShouldBeNil)
		v, err := e.Resolve("b")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 1)
	})
}

func TestEngineLoadFileRoundTrips(t *testing.T) {
	Convey("LoadFile reads and normalizes a YAML file from disk", t, func() {
		dir := t.TempDir()
		file := filepath.Join(dir, "base.yaml")
		So(os.WriteFile(file, []byte("model:\n  layers: 4\n"), 0o644), ShouldBeNil)

		e := New(Options{})
		tree, err := e.LoadFile(file)
		So(err, ShouldBeNil)

		So(e.Merge(tree), ShouldBeNil)
		v, err := e.Resolve("model::layers")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 4)
	})
}

func TestEngineMergesMultipleLayersInOrder(t *testing.T) {
	Convey("Merge composes layers left-to-right, later layers winning scalar conflicts", t, func() {
		e := New(Options{})
		base := map[string]interface{}{
			"model": map[string]interface{}{"layers": 2, "dim": 16},
		}
		override := map[string]interface{}{
			"model": map[string]interface{}{"layers": 8},
		}
		So(e.Merge(base, override), ShouldBeNil)

		layers, err := e.Resolve("model::layers")
		So(err, ShouldBeNil)
		So(layers, ShouldEqual, 8)

		dim, err := e.Resolve("model::dim")
		So(err, ShouldBeNil)
		So(dim, ShouldEqual, 16)
	})
}

func TestEngineHasAndKeysBeforeAndAfterMerge(t *testing.T) {
	Convey("Has and Keys report false/nil before Merge and correctly after", t, func() {
		e := New(Options{})
		So(e.Has("model::layers"), ShouldBeFalse)
		So(e.Keys(), ShouldBeNil)

		So(e.Merge(map[string]interface{}{
			"model": map[string]interface{}{"layers": 2},
		}), ShouldBeNil)

		So(e.Has("model::layers"), ShouldBeTrue)
		So(e.Has("model::nope"), ShouldBeFalse)
		So(e.Keys()["model"], ShouldContain, "model::layers")
	})
}

func TestEngineResolveBeforeMergeFails(t *testing.T) {
	Convey("Resolve against an unmerged Engine fails with a ValidationError", t, func() {
		e := New(Options{})
		_, err := e.Resolve("a")
		So(err, ShouldNotBeNil)
		So(IsKind(err, ValidationErrorKind), ShouldBeTrue)
	})
}

func TestEngineResolveAllReportsEveryFailure(t *testing.T) {
	Convey("ResolveAll accumulates every resolution failure into a MultiError", t, func() {
		e := New(Options{})
		So(e.Merge(map[string]interface{}{
			"a": "@missing1",
			"b": "@missing2",
			"c": 3,
		}), ShouldBeNil)

		_, err := e.ResolveAll(false)
		So(err, ShouldNotBeNil)
		merr, ok := err.(MultiError)
		So(ok, ShouldBeTrue)
		So(merr.Count(), ShouldEqual, 2)
	})

	Convey("ResolveAll with dataflowOrder resolves a dependency before its dependent", t, func() {
		e := New(Options{})
		So(e.Merge(map[string]interface{}{
			"a": 1,
			"b": "@a",
			"c": "$@b + 1",
		}), ShouldBeNil)

		out, err := e.ResolveAll(true)
		So(err, ShouldBeNil)
		So(out["a"], ShouldEqual, 1)
		So(out["b"], ShouldEqual, 1)
		So(out["c"], ShouldEqual, float64(2))
	})
}

func TestEngineUpdateAppendsOverrideLayer(t *testing.T) {
	Convey("Update folds CLI-style override strings on as a final layer", t, func() {
		e := New(Options{})
		So(e.Merge(map[string]interface{}{
			"model": map[string]interface{}{"layers": 2, "dim": 16},
		}), ShouldBeNil)

		So(e.Update([]string{"model::layers=8"}), ShouldBeNil)

		layers, err := e.Resolve("model::layers")
		So(err, ShouldBeNil)
		So(layers, ShouldEqual, 8)

		dim, err := e.Resolve("model::dim")
		So(err, ShouldBeNil)
		So(dim, ShouldEqual, 16)
	})
}
