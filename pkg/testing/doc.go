// Package testing provides fixtures shared by the deploytest package tests.
//
// This package includes:
//
//   - Fixture: a temporary directory with helpers to write and read YAML files
//     and assertions about file content and modes
//   - ListenTCP / ClosedPort: loopback endpoints for port polling tests
//
// Usage Example:
//
//	func TestEdit(t *testing.T) {
//		fx := testhelper.NewFixture(t)
//		path := fx.WriteYAML("inputs.yaml", map[string]interface{}{"a": 1})
//
//		err := yamlpatch.Edit(path, func(p *yamlpatch.Patcher) error {
//			return p.SetValue("a", 2)
//		})
//		require.NoError(t, err)
//
//		assert.Equal(t, 2, fx.ReadYAML("inputs.yaml")["a"])
//	}
package testing
