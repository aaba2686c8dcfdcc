// Package lang compiles HBML, an indentation-based markup template
// language, into reusable render programs.
//
// # Pipeline
//
// Source text passes through four stages:
//
//   - [Scanner] splits lines into tokens. It tracks an indent stack and
//     synthesizes Indent and Outdent tokens, and runs a small mode stack per
//     line to lex tag briefs, attribute lists, string literals and embedded
//     code.
//   - [Parse] builds the Block Tree by recursive descent. An attribute list
//     left open at end of line is continued on the following lines.
//   - [Lower] turns the tree into an immutable [Program] of output
//     operations.
//   - [Program.Render] walks the program, delegating embedded expressions
//     and statements to an [Engine].
//
// [Compile] runs the first three stages.
//
// # Grammar
//
//	blocks    := block*
//	block     := header (INDENT blocks OUTDENT)?
//	header    := tag | statement | text
//	tag       := (mark name)+ ('(' attr (',' attr)* ')')? ('/' | text)?
//	attr      := key '=' (string | expression)
//	statement := ('-' | '=' | '=%') code
//
// Marks are % (tag name), # (id), . (class) and : (filter). The last % and
// the last # win; classes accumulate.
//
// # Example
//
//	%html
//	  %body#main.page
//	    %h1 Welcome
//	    - for item in items
//	      %p(class=item.kind)
//	        = item.name
//	    - else
//	      %p Nothing here.
//	    %input(type="text", name="q")/
//	    %pre:plain
//	      raw <text> stays as written
//
// # Embedded code
//
// The default engine, [ExprEngine], evaluates expressions with expr-lang
// and understands a few statements: if, elif, else, unless, for and with.
// Any type implementing [Engine] can replace it via [WithEngine].
package lang
