/*
Package avdl implements a compiler front end for the Avro IDL: lexing and
parsing IDL source, building an in-memory schema and protocol model,
resolving named-type references, and emitting canonical Avro JSON.

Usage Example:

	result, diags := load.LoadFile("example.avdl")
	if diags.HasFatal() {
		log.Fatal(diags.Render(avdl.SourceSet{"example.avdl": src}))
	}

	reg := avdl.NewRegistry(result.Protocol.Types(), diags, avdl.SourceSpan{})
	avdl.Resolve(result.Protocol, reg, diags)

	fmt.Println(avdl.EmitProtocol(result.Protocol))
*/
package avdl
