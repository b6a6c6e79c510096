package sparkwheel

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPruneRemovesIdentifierLeavingSiblings(t *testing.T) {
	Convey("Prune deletes the named item without disturbing the rest of the tree", t, func() {
		tree := map[string]interface{}{
			"model": map[string]interface{}{
				"layers": 4,
				"debug":  true,
			},
			"data": map[string]interface{}{"batch_size": 32},
		}

		out, err := Prune(tree, "model::debug")
		So(err, ShouldBeNil)

		model := out["model"].(map[string]interface{})
		So(model["layers"], ShouldEqual, 4)
		_, stillThere := model["debug"]
		So(stillThere, ShouldBeFalse)
		So(out["data"], ShouldNotBeNil)

		// original untouched
		So(tree["model"].(map[string]interface{})["debug"], ShouldEqual, true)
	})

	Convey("Prune on a missing identifier is a no-op", t, func() {
		tree := map[string]interface{}{"a": 1}
		out, err := Prune(tree, "b::c")
		So(err, ShouldBeNil)
		So(out["a"], ShouldEqual, 1)
	})
}

func TestCherryPickKeepsOnlyNamedIdentifiers(t *testing.T) {
	Convey("CherryPick retains only the requested subtrees", t, func() {
		tree := map[string]interface{}{
			"model": map[string]interface{}{
				"layers": 4,
				"debug":  true,
			},
			"data": map[string]interface{}{"batch_size": 32},
		}

		out, err := CherryPick(tree, "model::layers")
		So(err, ShouldBeNil)

		_, hasData := out["data"]
		So(hasData, ShouldBeFalse)
		model := out["model"].(map[string]interface{})
		So(model["layers"], ShouldEqual, 4)
		_, hasDebug := model["debug"]
		So(hasDebug, ShouldBeFalse)
	})

	Convey("CherryPick fails if a requested identifier is missing", t, func() {
		tree := map[string]interface{}{"a": 1}
		_, err := CherryPick(tree, "missing")
		So(err, ShouldNotBeNil)
	})
}
