package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const productIDParam = "productId"

// AdminCreateProduct accepts a multipart form: a JSON payload part, product
// images under "images" and per-variant images under "variant_images[<index>]".
func AdminCreateProduct(svc productsvc.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		form, err := validators.ParseMultipart(w, r, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.Cleanup()

		var input productsvc.CreateProductInput
		if err := form.DecodePayload(&input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := attachCreateFiles(form, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, product)
	}
}

// AdminUpdateProduct accepts "new_images", "new_variant_images[<index>]" for
// entries of new_variants and "variant_images[<variantId>]" for existing variants.
func AdminUpdateProduct(svc productsvc.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseIDParam(r, productIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		form, err := validators.ParseMultipart(w, r, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.Cleanup()

		var input productsvc.UpdateProductInput
		if err := form.DecodePayload(&input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := attachUpdateFiles(form, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseIDParam(r, productIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.DeleteProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func AdminGetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseIDParam(r, productIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func attachCreateFiles(form *validators.Form, input *productsvc.CreateProductInput) error {
	images, err := form.Files("images")
	if err != nil {
		return err
	}
	input.Images = toFileInputs(images)

	byIndex, err := form.IndexedFiles("variant_images")
	if err != nil {
		return err
	}
	for idx, files := range byIndex {
		if int(idx) >= len(input.Variants) {
			return unmatchedFiles("variant_images", idx)
		}
		input.Variants[idx].Images = toFileInputs(files)
	}
	return nil
}

func attachUpdateFiles(form *validators.Form, input *productsvc.UpdateProductInput) error {
	images, err := form.Files("new_images")
	if err != nil {
		return err
	}
	input.NewImages = toFileInputs(images)

	newByIndex, err := form.IndexedFiles("new_variant_images")
	if err != nil {
		return err
	}
	for idx, files := range newByIndex {
		if int(idx) >= len(input.NewVariants) {
			return unmatchedFiles("new_variant_images", idx)
		}
		input.NewVariants[idx].Images = toFileInputs(files)
	}

	byVariant, err := form.IndexedFiles("variant_images")
	if err != nil {
		return err
	}
	for variantID, files := range byVariant {
		matched := false
		for i := range input.UpdatedVariants {
			if input.UpdatedVariants[i].ID == variantID {
				input.UpdatedVariants[i].NewImages = toFileInputs(files)
				matched = true
				break
			}
		}
		if !matched {
			// images alone are a valid update of an existing variant
			input.UpdatedVariants = append(input.UpdatedVariants, productsvc.VariantUpdateInput{
				ID:        variantID,
				NewImages: toFileInputs(files),
			})
		}
	}
	return nil
}

func toFileInputs(files []validators.UploadedFile) []productsvc.FileInput {
	if len(files) == 0 {
		return nil
	}
	out := make([]productsvc.FileInput, 0, len(files))
	for _, f := range files {
		out = append(out, productsvc.FileInput{Name: f.Name, Data: f.Data})
	}
	return out
}

func unmatchedFiles(field string, idx uint) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "files reference a variant that is not in the payload").
		WithDetails(map[string]any{"field": field, "index": idx})
}
