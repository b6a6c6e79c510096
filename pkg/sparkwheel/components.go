package sparkwheel

// RegisterBuiltins registers sparkwheel's three built-in domain
// components onto reg: a Vault secret lookup, an AWS SSM Parameter
// Store lookup, and a NATS publish. Each mirrors the corresponding
// built-in operator the teacher repo ships (vault, aws, nats), but as
// an instantiation-site `_target_` rather than a `(( ... ))` marker
// operator, per spec.md §4.5.
func RegisterBuiltins(reg *Registry) {
	reg.Register(vaultTargetPath, vaultSecretConstructor)
	reg.Register(ssmParamTargetPath, ssmParameterConstructor)
	reg.Register(natsPublishTargetPath, natsPublishConstructor)
}
